package persist

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPersist_WritesNormalizedPNG(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir, 800, testLogger())

	res, err := p.Persist("acme", solid(1600, 400, color.RGBA{200, 10, 10, 255}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acme.png"), res.Path)
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 200, res.Height)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 200), decoded.Bounds())

	hash, err := utils.FileContentHash(res.Path)
	require.NoError(t, err)
	assert.Equal(t, hash, res.FileHash)
}

func TestPersist_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir, 800, testLogger())

	_, err := p.Persist("acme", solid(100, 100, color.White))
	require.NoError(t, err)
	res, err := p.Persist("acme", solid(120, 60, color.Black))
	require.NoError(t, err)
	assert.Equal(t, 120, res.Width)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme.png", entries[0].Name())
}

func TestPersist_IOFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	p := NewPersister(blocker, 800, testLogger())
	_, err := p.Persist("acme", solid(100, 100, color.White))
	require.Error(t, err)

	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PersistIOFailure, pe.Kind)
	assert.True(t, errors.Is(err, utils.ErrPersist))
	assert.Equal(t, "Persist_IOFailure", utils.CategorizeError(err))
}
