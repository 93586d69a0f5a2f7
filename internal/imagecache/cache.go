// Package imagecache serves species images from the local image cache
// directory and builds the offline fallback payload from it.
//
// The directory holds one folder per species, named after the common name
// with spaces replaced by underscores, each containing .png/.jpg/.jpeg
// images and optional same-stem .txt attribution files.
package imagecache

import (
	"math/rand/v2"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/k3a/html2text"
	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/securefs"
)

const (
	DefaultDirectory = "static/bird_images"
	DefaultURLPrefix = "/static/bird_images"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// Asset is a locally cached image and its attribution.
type Asset struct {
	ImageURL  string
	Copyright string
}

// Config configures a Cache.
type Config struct {
	Fs        afero.Fs
	Directory string
	URLPrefix string
	// Rand picks among several images. Defaults to a time-seeded PCG.
	Rand   *rand.Rand
	Logger logger.Logger
}

// Cache looks up species images in the local cache directory.
// Safe for concurrent use.
type Cache struct {
	fs        afero.Fs
	dir       string
	urlPrefix string
	log       logger.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewCache creates a Cache.
func NewCache(cfg Config) *Cache {
	c := &Cache{
		fs:        cfg.Fs,
		dir:       cfg.Directory,
		urlPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
		rand:      cfg.Rand,
		log:       cfg.Logger,
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.dir == "" {
		c.dir = DefaultDirectory
	}
	if cfg.URLPrefix == "" {
		c.urlPrefix = DefaultURLPrefix
	}
	if c.rand == nil {
		c.rand = newRand()
	}
	if c.log == nil {
		c.log = logger.Global().Module("imagecache")
	}
	return c
}

func newRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// FolderName maps a species name to its cache folder: letters, digits,
// spaces and underscores are kept, trailing spaces trimmed, and the
// remaining spaces replaced with underscores.
func FolderName(species string) string {
	var b strings.Builder
	for _, r := range species {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}

// Lookup picks one cached image for species at random. It reports false when
// the species has no folder or the folder has no images.
func (c *Cache) Lookup(species string) (Asset, bool) {
	folder := FolderName(species)
	if folder == "" {
		return Asset{}, false
	}

	dir := filepath.Join(c.dir, folder)
	if err := securefs.ValidateWithinBase(c.dir, dir); err != nil {
		c.log.Warn("Rejected image folder outside cache directory",
			logger.String("species", species),
			logger.Error(err))
		return Asset{}, false
	}

	images, err := c.listImages(dir)
	if err != nil || len(images) == 0 {
		return Asset{}, false
	}

	chosen := images[c.intN(len(images))]

	return Asset{
		ImageURL:  c.urlPrefix + "/" + path.Join(folder, chosen),
		Copyright: c.attribution(dir, chosen),
	}, true
}

// CachedImage is Lookup in the shape the reconciler consumes.
func (c *Cache) CachedImage(species string) (imageURL, copyright string, ok bool) {
	asset, ok := c.Lookup(species)
	return asset.ImageURL, asset.Copyright, ok
}

// listImages returns image file names in dir, sorted
func (c *Cache) listImages(dir string) ([]string, error) {
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.Contains(imageExtensions, ext) {
			images = append(images, e.Name())
		}
	}
	slices.Sort(images)
	return images, nil
}

// attribution reads the same-stem .txt next to image as plain text
func (c *Cache) attribution(dir, image string) string {
	stem := strings.TrimSuffix(image, filepath.Ext(image))
	data, ok, err := securefs.ReadFileIfExists(c.fs, filepath.Join(dir, stem+".txt"))
	if err != nil {
		c.log.Debug("Failed to read attribution",
			logger.String("image", image),
			logger.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(html2text.HTML2TextWithOptions(string(data), html2text.WithLinksInnerText()))
}

func (c *Cache) intN(n int) int {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.rand.IntN(n)
}

func (c *Cache) perm(n int) []int {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.rand.Perm(n)
}
