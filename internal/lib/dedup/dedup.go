// Package dedup decides whether a freshly downloaded camera image is the same
// content as the last image stored for that camera.
package dedup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// CachedSuffix tags analysis notes copied from a prior capture
const CachedSuffix = " [cached]"

// HashStore persists the most recent content hash per camera
type HashStore interface {
	GetImageHash(ctx context.Context, cameraID int) (string, bool, error)
	SaveImageHash(ctx context.Context, cameraID int, hashHex string) error
}

// Cache compares image content against the stored hash for each camera
type Cache struct {
	store HashStore
}

// NewCache creates a dedup cache backed by store
func NewCache(store HashStore) *Cache {
	return &Cache{store: store}
}

// Hash returns the lowercase hex SHA-256 digest of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// ShouldSkip hashes data and reports whether it matches the last stored hash
// for the camera. A camera with no stored hash is never skipped.
func (c *Cache) ShouldSkip(ctx context.Context, cameraID int, data []byte) (bool, string, error) {
	hash := Hash(data)
	prev, ok, err := c.store.GetImageHash(ctx, cameraID)
	if err != nil {
		return false, hash, fmt.Errorf("failed to load image hash for camera %d: %w", cameraID, err)
	}
	return ok && prev == hash, hash, nil
}

// Remember records hash as the latest content for the camera
func (c *Cache) Remember(ctx context.Context, cameraID int, hash string) error {
	if err := c.store.SaveImageHash(ctx, cameraID, hash); err != nil {
		return fmt.Errorf("failed to save image hash for camera %d: %w", cameraID, err)
	}
	return nil
}

// ImageKey builds a storage key that is unique per camera, capture second and
// content.
func ImageKey(cameraID int, at time.Time, hash string) string {
	short := hash
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("cam_%d_%s_%s.jpg", cameraID, at.UTC().Format("20060102_150405"), short)
}

// CachedNotes marks notes as reused from an earlier capture, once
func CachedNotes(prior string) string {
	return strings.TrimSuffix(prior, CachedSuffix) + CachedSuffix
}
