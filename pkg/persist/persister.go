// Package persist writes the winning candidate of each brand as a normalized PNG.
package persist

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/imaging"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// PersistErrorKind classifies a failed write
type PersistErrorKind int

const (
	PersistIOFailure PersistErrorKind = iota
)

func (k PersistErrorKind) String() string {
	switch k {
	case PersistIOFailure:
		return "IOFailure"
	default:
		return fmt.Sprintf("PersistErrorKind(%d)", int(k))
	}
}

// PersistError is the only error that aborts a run
type PersistError struct {
	Kind PersistErrorKind
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == utils.ErrPersist }

// Category is used by utils.CategorizeError
func (e *PersistError) Category() string { return "Persist_" + e.Kind.String() }

// Result describes a written logo
type Result struct {
	Path     string
	FileHash string // Content hash of the PNG bytes on disk
	Width    int
	Height   int
}

// Persister owns the output directory. One file per slug; rewrites replace the old file.
type Persister struct {
	outputDir string
	maxDim    int
	log       *logrus.Entry
}

// NewPersister creates a Persister writing into outputDir
func NewPersister(outputDir string, maxDim int, log *logrus.Entry) *Persister {
	return &Persister{outputDir: outputDir, maxDim: maxDim, log: log}
}

// OutputDir returns the directory logos are written to
func (p *Persister) OutputDir() string { return p.outputDir }

// PathFor returns the deterministic output path for slug
func (p *Persister) PathFor(slug string) string {
	return filepath.Join(p.outputDir, utils.LogoFilename(slug))
}

// Persist normalizes img and writes it to PathFor(slug). The file is written to a
// temp file in the same directory and renamed, so readers never see a partial PNG.
func (p *Persister) Persist(slug string, img image.Image) (Result, error) {
	path := p.PathFor(slug)
	fail := func(err error) (Result, error) {
		return Result{}, &PersistError{Kind: PersistIOFailure, Path: path, Err: err}
	}

	data, out, err := imaging.EncodePNG(img, p.maxDim)
	if err != nil {
		return fail(err)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fail(fmt.Errorf("%w: creating output dir: %w", utils.ErrFilesystem, err))
	}

	tmp, err := os.CreateTemp(p.outputDir, "."+utils.SanitizeFilename(slug)+"-*.tmp")
	if err != nil {
		return fail(fmt.Errorf("%w: creating temp file: %w", utils.ErrFilesystem, err))
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fail(fmt.Errorf("%w: writing temp file: %w", utils.ErrFilesystem, err))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fail(fmt.Errorf("%w: syncing temp file: %w", utils.ErrFilesystem, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("%w: closing temp file: %w", utils.ErrFilesystem, err))
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		p.log.Debugf("chmod %s: %v", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("%w: renaming into place: %w", utils.ErrFilesystem, err))
	}

	b := out.Bounds()
	p.log.WithFields(logrus.Fields{"slug": slug, "path": path, "width": b.Dx(), "height": b.Dy()}).Debug("Logo written")
	return Result{
		Path:     path,
		FileHash: utils.ContentHash(data),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}
