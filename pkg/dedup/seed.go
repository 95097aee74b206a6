package dedup

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// HashSource lists hash ownership recorded by earlier runs
type HashSource interface {
	ForEachHash(fn func(hash, slug string) error) error
}

// Seed loads already-persisted logos from outputDir (owner = file stem) and,
// when src is non-nil, the ownership records of previous runs.
// Returns the number of hashes registered.
func Seed(ix *Index, outputDir string, src HashSource) (int, error) {
	before := ix.Len()

	entries, err := os.ReadDir(outputDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: scan output dir '%s': %w", utils.ErrFilesystem, outputDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outputDir, name))
		if err != nil {
			ix.log.Warnf("Skipping unreadable logo '%s': %v", name, err)
			continue
		}
		var img image.Image
		if ix.maxDistance > 0 {
			if decoded, _, err := image.Decode(bytes.NewReader(data)); err == nil {
				img = decoded
			}
		}
		ix.Register(utils.ContentHash(data), strings.TrimSuffix(name, filepath.Ext(name)), img)
	}

	if src != nil {
		err := src.ForEachHash(func(hash, slug string) error {
			ix.Register(hash, slug, nil)
			return nil
		})
		if err != nil {
			return ix.Len() - before, err
		}
	}

	return ix.Len() - before, nil
}
