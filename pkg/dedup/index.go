package dedup

import (
	"fmt"
	"image"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// DuplicateError is returned when a claimed image is already owned by another brand
type DuplicateError struct {
	Hash       string
	Owner      string
	Perceptual bool // Matched by dHash distance rather than exact bytes
	Distance   int
}

func (e *DuplicateError) Error() string {
	if e.Perceptual {
		return fmt.Sprintf("duplicate of %s's logo (dhash distance %d)", e.Owner, e.Distance)
	}
	return fmt.Sprintf("content %s already owned by %s", e.Hash, e.Owner)
}

func (e *DuplicateError) Is(target error) bool { return target == utils.ErrDuplicate }

// Category is used by utils.CategorizeError
func (e *DuplicateError) Category() string {
	if e.Perceptual {
		return "Duplicate_Perceptual"
	}
	return "Duplicate"
}

// Claim asks the index to assign an image to a brand
type Claim struct {
	Hash     string      // utils.ContentHash of the raw bytes
	FileHash string      // Optional; hash of the PNG that will be written
	Slug     string      // Claiming brand
	Image    image.Image // Optional; enables the perceptual check
}

func (c Claim) hashes() []string {
	if c.FileHash == "" || c.FileHash == c.Hash {
		return []string{c.Hash}
	}
	return []string{c.Hash, c.FileHash}
}

type perceptualEntry struct {
	dhash *goimagehash.ImageHash
	hash  string
	slug  string
}

// Index is the run-wide set of accepted content hashes. All mutation goes
// through one mutex so check-and-register is atomic across workers.
type Index struct {
	mu          sync.Mutex
	owners      map[string]string // content hash -> slug
	perceptual  []perceptualEntry
	maxDistance int // 0 disables the perceptual check
	log         *logrus.Entry
}

// NewIndex creates an empty index. maxDistance > 0 rejects images whose dHash
// is within that Hamming distance of another brand's image.
func NewIndex(maxDistance int, log *logrus.Entry) *Index {
	return &Index{
		owners:      make(map[string]string),
		maxDistance: maxDistance,
		log:         log,
	}
}

// IsDuplicate reports whether hash is owned by a brand other than slug
func (ix *Index) IsDuplicate(hash, slug string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	owner, ok := ix.owners[hash]
	return ok && owner != slug
}

// Owner returns the slug owning hash
func (ix *Index) Owner(hash string) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	owner, ok := ix.owners[hash]
	return owner, ok
}

// Claim atomically checks and registers c. Both the raw and the file hash must be
// free; seeded logos are known only by their file hash. A hash already owned by the
// same slug is not a duplicate, so re-running a brand can keep its own logo.
func (ix *Index) Claim(c Claim) error {
	dh := ix.dhash(c.Image)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, h := range c.hashes() {
		if owner, ok := ix.owners[h]; ok && owner != c.Slug {
			return &DuplicateError{Hash: h, Owner: owner}
		}
	}
	if dh != nil {
		for _, e := range ix.perceptual {
			if e.slug == c.Slug {
				continue
			}
			dist, err := dh.Distance(e.dhash)
			if err == nil && dist <= ix.maxDistance {
				return &DuplicateError{Hash: c.Hash, Owner: e.slug, Perceptual: true, Distance: dist}
			}
		}
	}

	ix.registerLocked(c.Hash, c.Slug, dh)
	if c.FileHash != "" && c.FileHash != c.Hash {
		ix.registerLocked(c.FileHash, c.Slug, nil)
	}
	return nil
}

// Release undoes a claim, used when persisting the claimed image fails
func (ix *Index) Release(c Claim) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, h := range c.hashes() {
		if owner, ok := ix.owners[h]; ok && owner == c.Slug {
			delete(ix.owners, h)
		}
	}
	kept := ix.perceptual[:0]
	for _, e := range ix.perceptual {
		if e.hash == c.Hash && e.slug == c.Slug {
			continue
		}
		kept = append(kept, e)
	}
	ix.perceptual = kept
}

// Register records ownership without checking; used for seeding.
// The first owner of a hash wins.
func (ix *Index) Register(hash, slug string, img image.Image) {
	dh := ix.dhash(img)
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if owner, ok := ix.owners[hash]; ok && owner != slug {
		ix.log.WithFields(logrus.Fields{"hash": hash, "owner": owner, "slug": slug}).Warn("Seeded hash already owned by another brand")
		return
	}
	ix.registerLocked(hash, slug, dh)
}

func (ix *Index) registerLocked(hash, slug string, dh *goimagehash.ImageHash) {
	ix.owners[hash] = slug
	if dh != nil {
		ix.perceptual = append(ix.perceptual, perceptualEntry{dhash: dh, hash: hash, slug: slug})
	}
}

// Len returns the number of owned content hashes
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.owners)
}

func (ix *Index) dhash(img image.Image) *goimagehash.ImageHash {
	if ix.maxDistance <= 0 || img == nil {
		return nil
	}
	dh, err := goimagehash.DifferenceHash(img)
	if err != nil {
		ix.log.Debugf("dhash failed: %v", err)
		return nil
	}
	return dh
}
