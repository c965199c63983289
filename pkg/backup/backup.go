// Package backup exports and restores settings snapshots. A snapshot is
// a named JSON document; the storage backend decides where it lives.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const snapshotVersion = "1.0"

// Snapshot wraps one exported settings document.
type Snapshot struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Settings  json.RawMessage `json:"settings"`
}

// Storage defines interface for snapshot storage
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Service handles snapshot operations
type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// Create stores settings under the given snapshot name.
func (s *Service) Create(ctx context.Context, name string, settings interface{}) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	snap := Snapshot{
		Version:   snapshotVersion,
		Timestamp: time.Now(),
		Settings:  raw,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

// Restore reads the named snapshot and unmarshals its settings into out.
// Returns the snapshot's creation time.
func (s *Service) Restore(ctx context.Context, name string, out interface{}) (time.Time, error) {
	rc, err := s.storage.Load(ctx, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}
	defer rc.Close()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	if snap.Version != snapshotVersion {
		return time.Time{}, fmt.Errorf("unsupported snapshot version %q", snap.Version)
	}

	if err := json.Unmarshal(snap.Settings, out); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal settings from %s: %w", name, err)
	}
	return snap.Timestamp, nil
}

// List returns all stored snapshot names.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx, "")
}

// Delete removes the named snapshot.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}
