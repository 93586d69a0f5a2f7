package imagecache

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/logger"
)

const testDir = "static/bird_images"

func newTestCache(t *testing.T, fs afero.Fs) *Cache {
	t.Helper()
	return NewCache(Config{
		Fs:        fs,
		Directory: testDir,
		URLPrefix: "/static/bird_images/",
		Rand:      rand.New(rand.NewPCG(1, 2)),
		Logger:    testLogger(),
	})
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelDebug, time.UTC).Module("imagecache")
}

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(testDir, name), []byte(content), 0o644))
}

func TestFolderName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		species string
		want    string
	}{
		{"American Robin", "American_Robin"},
		{"Cooper's Hawk", "Coopers_Hawk"},
		{"Black-capped Chickadee", "Blackcapped_Chickadee"},
		{"Eurasian Blue Tit  ", "Eurasian_Blue_Tit"},
		{"Already_Underscored", "Already_Underscored"},
		{"Mäusebussard", "Mäusebussard"},
		{"../../etc", "etc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.species, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FolderName(tt.species))
		})
	}
}

func TestCache_LookupSingleImageWithAttribution(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "American_Robin/robin1.JPG", "img")
	writeFile(t, fs, "American_Robin/robin1.txt", `<p>Photo by <a href="https://example.org">Jane Doe</a></p>`)
	writeFile(t, fs, "American_Robin/notes.md", "ignored")

	cache := newTestCache(t, fs)
	asset, ok := cache.Lookup("American Robin")

	require.True(t, ok)
	assert.Equal(t, "/static/bird_images/American_Robin/robin1.JPG", asset.ImageURL)
	assert.Contains(t, asset.Copyright, "Photo by")
	assert.Contains(t, asset.Copyright, "Photo by Jane Doe")
	assert.NotContains(t, asset.Copyright, "<a")
}

func TestCache_LookupWithoutAttribution(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Osprey/osprey.png", "img")

	url, copyright, ok := newTestCache(t, fs).CachedImage("Osprey")

	require.True(t, ok)
	assert.Equal(t, "/static/bird_images/Osprey/osprey.png", url)
	assert.Empty(t, copyright)
}

func TestCache_LookupPicksAmongImages(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Osprey/a.jpg", "img")
	writeFile(t, fs, "Osprey/b.jpeg", "img")
	writeFile(t, fs, "Osprey/c.png", "img")

	cache := newTestCache(t, fs)
	want := []string{
		"/static/bird_images/Osprey/a.jpg",
		"/static/bird_images/Osprey/b.jpeg",
		"/static/bird_images/Osprey/c.png",
	}

	seen := make(map[string]bool)
	for range 50 {
		asset, ok := cache.Lookup("Osprey")
		require.True(t, ok)
		assert.Contains(t, want, asset.ImageURL)
		seen[asset.ImageURL] = true
	}
	assert.Greater(t, len(seen), 1, "lookups should vary across images")
}

func TestCache_LookupMisses(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Empty_Folder/readme.txt", "no images here")

	cache := newTestCache(t, fs)

	_, ok := cache.Lookup("Unknown Bird")
	assert.False(t, ok, "missing folder")

	_, ok = cache.Lookup("Empty Folder")
	assert.False(t, ok, "folder without images")

	_, ok = cache.Lookup("!!!")
	assert.False(t, ok, "name that sanitizes to nothing")
}

func TestParseSpeciesList(t *testing.T) {
	t.Parallel()

	data := []byte("# station species\n" +
		"Turdus migratorius_American Robin\n" +
		"\n" +
		"Pandion haliaetus_Osprey\n" +
		"Blue Jay\n" +
		"Turdus migratorius_American Robin\n")

	list := ParseSpeciesList(data)

	assert.Equal(t, []Species{
		{CommonName: "American Robin", ScientificName: "Turdus migratorius"},
		{CommonName: "Osprey", ScientificName: "Pandion haliaetus"},
		{CommonName: "Blue Jay"},
	}, list)
}

func TestParseSpeciesList_ByteOrderMark(t *testing.T) {
	t.Parallel()

	list := ParseSpeciesList([]byte("\uFEFFPandion haliaetus_Osprey\r\nBlue Jay\r\n"))

	assert.Equal(t, []Species{
		{CommonName: "Osprey", ScientificName: "Pandion haliaetus"},
		{CommonName: "Blue Jay"},
	}, list)
}

func TestLoadSpeciesList_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadSpeciesList(afero.NewMemMapFs(), "species_list.txt")
	require.Error(t, err)
}

func TestFallback_SampleAllFromCache(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	names := []string{"American Robin", "Osprey", "Blue Jay", "Wren", "Great Tit", "Northern Cardinal"}
	content := ""
	for _, n := range names {
		content += "Genus species_" + n + "\n"
		writeFile(t, fs, FolderName(n)+"/1.jpg", "img")
	}
	require.NoError(t, afero.WriteFile(fs, "species_list.txt", []byte(content), 0o644))

	fb := NewFallback(newTestCache(t, fs), nil, "species_list.txt", nil, testLogger())
	out := fb.Sample(context.Background())

	require.Len(t, out, fallbackSampleSize)
	seen := make(map[string]bool)
	for _, d := range out {
		assert.Contains(t, names, d.Name)
		assert.False(t, seen[d.Name], "species sampled twice: %s", d.Name)
		seen[d.Name] = true

		assert.True(t, d.IsOffline)
		assert.Zero(t, d.ConfidenceValue)
		assert.Zero(t, d.DetectionsToday)
		assert.Empty(t, d.CapturedAt)
		assert.Equal(t, "/static/bird_images/"+FolderName(d.Name)+"/1.jpg", d.ImageURL)
	}
}

func TestFallback_SkipsSpeciesWithoutImages(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Osprey/1.jpg", "img")
	require.NoError(t, afero.WriteFile(fs, "species_list.txt",
		[]byte("Pandion haliaetus_Osprey\nTurdus migratorius_American Robin\nCyanocitta cristata_Blue Jay\n"), 0o644))

	out := NewFallback(newTestCache(t, fs), fs, "species_list.txt", nil, testLogger()).Sample(context.Background())

	require.Len(t, out, 1)
	assert.Equal(t, "Osprey", out[0].Name)
}

func TestFallback_MissingListIsEmpty(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	out := NewFallback(newTestCache(t, fs), fs, "species_list.txt", nil, testLogger()).Sample(context.Background())

	assert.NotNil(t, out)
	assert.Empty(t, out)
}
