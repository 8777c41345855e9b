package store

import (
	"context"
	"log"

	"novyn/models"
)

// StateStore persists the chat snapshot. The in-memory state stays
// authoritative; a store only has to round-trip the snapshot shape.
// Load returns (nil, nil) when nothing has been persisted yet.
type StateStore interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap *models.Snapshot) error
	Close() error
}

// Open selects the snapshot backend: sqlite when a database path is
// configured and opens cleanly, the JSON file otherwise.
func Open(databasePath, dataFile string) StateStore {
	if databasePath != "" {
		s, err := NewSQLiteStore(databasePath)
		if err != nil {
			log.Printf("Failed to open database store, falling back to file storage: %v", err)
		} else {
			log.Printf("Using database store: %s", databasePath)
			return s
		}
	}
	return NewFileStore(dataFile)
}

// LoadSnapshot reads the persisted snapshot from the primary store,
// falling back to the JSON file when the primary is empty or failing.
// State recovered through the file fallback behind a database primary is
// migrated forward immediately. Returns nil when there is nothing to
// restore; the caller starts from empty state rather than refusing to
// boot.
func LoadSnapshot(ctx context.Context, primary StateStore, dataFile string) *models.Snapshot {
	snap, err := primary.Load(ctx)
	if err != nil {
		log.Printf("Failed to load chat state: %v", err)
	}
	if snap != nil {
		return snap
	}

	if _, isFile := primary.(*FileStore); isFile {
		return nil
	}

	snap, err = NewFileStore(dataFile).Load(ctx)
	if err != nil {
		log.Printf("Failed to load chat state from fallback file: %v", err)
		return nil
	}
	if snap == nil {
		return nil
	}

	if err := primary.Save(ctx, snap); err != nil {
		log.Printf("Failed to migrate file state into the database store: %v", err)
	} else {
		log.Println("Migrated local file state into the database store")
	}
	return snap
}
