package blob

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ArchivePrefix is the key prefix under which flush payloads are stored.
const ArchivePrefix = "flush/"

// Archive writes successfully flushed sync payloads to a blob store for
// audit and replay. Keys are flush/<timestamp>-<id>.json.
type Archive struct {
	store Store
}

// NewArchive wraps a blob store as a flush archive.
func NewArchive(store Store) *Archive {
	return &Archive{store: store}
}

// Save marshals the payload and stores it under a timestamped key. Returns
// the key written.
func (a *Archive) Save(ctx context.Context, payload any, at time.Time) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%s-%s.json", ArchivePrefix, at.UTC().Format("20060102T150405.000"), hex.EncodeToString(suffix[:]))
	if _, err := a.store.Put(ctx, key, bytes.NewReader(raw), PutOptions{ContentType: "application/json"}); err != nil {
		return "", fmt.Errorf("archive payload: %w", err)
	}
	return key, nil
}

// List returns the archived payload keys, oldest first.
func (a *Archive) List(ctx context.Context) ([]Info, error) {
	return a.store.List(ctx, ArchivePrefix)
}
