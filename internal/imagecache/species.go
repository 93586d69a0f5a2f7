package imagecache

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/errors"
)

// Species is one entry of the species list file.
type Species struct {
	CommonName     string
	ScientificName string
}

// LoadSpeciesList reads a species list in BirdNET label format, one
// "Scientific name_Common name" per line. Lines without an underscore are
// taken as a bare common name. Blank lines and '#' comments are skipped.
func LoadSpeciesList(fs afero.Fs, path string) ([]Species, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.New(err).
			Component("imagecache").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "load_species_list").
			Build()
	}
	return ParseSpeciesList(data), nil
}

// ParseSpeciesList parses species list content. Duplicate common names keep
// the first entry.
func ParseSpeciesList(data []byte) []Species {
	var list []Species
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var s Species
		if scientific, common, ok := strings.Cut(line, "_"); ok {
			s = Species{
				CommonName:     strings.TrimSpace(common),
				ScientificName: strings.TrimSpace(scientific),
			}
		} else {
			s = Species{CommonName: line}
		}
		if s.CommonName == "" {
			continue
		}
		if _, dup := seen[s.CommonName]; dup {
			continue
		}
		seen[s.CommonName] = struct{}{}
		list = append(list, s)
	}
	return list
}
