package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"redline/internal/catalog"
	"redline/internal/entity"
	"redline/internal/services"
)

func newStore(t *testing.T) (*catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.OpenPath(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func TestFileRasterizerRoundTrip(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()

	img := image.NewGray(image.Rect(0, 0, 40, 30))
	img.SetGray(5, 5, color.Gray{Y: 200})
	rel, err := WritePNG(dir, "rev-a/sheet-1", img)
	if err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	rec := &entity.Entity{ID: "ent-1", RevisionID: "rev-a", Kind: entity.KindSheet, Index: 0, SheetNumber: "A-101"}
	if err := store.Put(ctx, rec, rel); err != nil {
		t.Fatalf("put entity: %v", err)
	}

	r := NewFileRasterizer(store, dir)
	loaded, err := r.Load(ctx, "ent-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Bounds(); got.Dx() != 40 || got.Dy() != 30 {
		t.Fatalf("bounds = %v, want 40x30", got)
	}
}

func TestFileRasterizerMissing(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()
	r := NewFileRasterizer(store, dir)

	if _, err := r.Load(ctx, "ent-unknown"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown entity: err = %v, want not found", err)
	}

	rec := &entity.Entity{ID: "ent-2", RevisionID: "rev-a", Kind: entity.KindSheet, Index: 0, SheetNumber: "A-102"}
	if err := store.Put(ctx, rec, "rev-a/gone.png"); err != nil {
		t.Fatalf("put entity: %v", err)
	}
	if _, err := r.Load(ctx, "ent-2"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing file: err = %v, want not found", err)
	}
}
