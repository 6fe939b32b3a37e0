package testsupport

import (
	"context"
	"testing"

	"redline/internal/catalog"
	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutEntity registers one entity in the catalog or fails the test.
func PutEntity(t testing.TB, store *catalog.Store, rec *entity.Entity, rasterPath string) {
	t.Helper()

	if err := store.Put(context.Background(), rec, rasterPath); err != nil {
		t.Fatalf("catalog.Put %s: %v", rec.ID, err)
	}
}

// Sheet builds a minimal sheet entity for matcher and fan-out tests.
func Sheet(id, revisionID string, index int, sheetNumber, title string) *entity.Entity {
	return &entity.Entity{
		ID:          id,
		RevisionID:  revisionID,
		Kind:        entity.KindSheet,
		Index:       index,
		SheetNumber: sheetNumber,
		Title:       title,
	}
}
