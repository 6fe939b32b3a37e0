package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"redline/internal/catalog"
	"redline/internal/entity"
	"redline/internal/services"
	"redline/internal/testsupport"
)

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))

	rec := &entity.Entity{
		ID:         "b1",
		RevisionID: "rev-a",
		Kind:       entity.KindBlock,
		Index:      2,
		BlockType:  "titleblock",
		Bounds:     &entity.Bounds{X: 1, Y: 2, Width: 30, Height: 40},
	}
	if err := store.Put(ctx, rec, "rev-a/b1.png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.RevisionID != "rev-a" || got.Kind != entity.KindBlock {
		t.Fatalf("Get = %+v", got)
	}
	if got.Bounds == nil || got.Bounds.Width != 30 {
		t.Fatalf("bounds not round-tripped: %+v", got.Bounds)
	}

	path, err := store.RasterPath(ctx, "b1")
	if err != nil {
		t.Fatalf("RasterPath: %v", err)
	}
	if path != "rev-a/b1.png" {
		t.Fatalf("RasterPath = %q", path)
	}

	if missing, err := store.Get(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("missing entity: %+v, %v", missing, err)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))

	if err := store.Put(ctx, testsupport.Sheet("s1", "rev-a", 0, "A-101", "Plan"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, testsupport.Sheet("s1", "rev-a", 0, "A-101", "Site Plan"), ""); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Site Plan" {
		t.Fatalf("replacement not applied: %+v", got)
	}
}

func TestPutRejectsInvalidEntity(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	err := store.Put(context.Background(), &entity.Entity{ID: "x", Kind: "region"}, "")
	if err == nil {
		t.Fatalf("unknown kind must be rejected")
	}
}

func TestByRevisionOrdersByIndex(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))

	testsupport.PutEntity(t, store, testsupport.Sheet("s2", "rev-a", 1, "A-102", ""), "")
	testsupport.PutEntity(t, store, testsupport.Sheet("s1", "rev-a", 0, "A-101", ""), "")
	testsupport.PutEntity(t, store, testsupport.Sheet("other", "rev-b", 0, "A-101", ""), "")
	testsupport.PutEntity(t, store, &entity.Entity{ID: "blk", RevisionID: "rev-a", Kind: entity.KindBlock}, "")

	sheets, err := store.ByRevision(ctx, "rev-a", entity.KindSheet)
	if err != nil {
		t.Fatalf("ByRevision: %v", err)
	}
	if len(sheets) != 2 || sheets[0].ID != "s1" || sheets[1].ID != "s2" {
		t.Fatalf("ByRevision = %+v", sheets)
	}
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestAndImport(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))

	path := writeManifest(t, `{
  "revision_id": "rev-a",
  "entities": [
    {"id": "s1", "kind": "sheet", "index": 0, "sheet_number": "A-101", "title": "Plan", "raster_path": "rev-a/s1.png"},
    {"id": "b1", "kind": "block", "index": 0, "block_type": "stamp", "bounds": {"x": 1, "y": 2, "width": 3, "height": 4}}
  ]
}`)

	manifest, err := catalog.LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	count, err := store.Import(ctx, manifest)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if count != 2 {
		t.Fatalf("Import count = %d", count)
	}

	sheet, err := store.Get(ctx, "s1")
	if err != nil || sheet == nil {
		t.Fatalf("imported sheet: %+v, %v", sheet, err)
	}
	if sheet.SheetNumber != "A-101" || sheet.RevisionID != "rev-a" {
		t.Fatalf("sheet fields: %+v", sheet)
	}
	block, err := store.Get(ctx, "b1")
	if err != nil || block == nil || block.Bounds == nil || block.Bounds.Height != 4 {
		t.Fatalf("imported block: %+v, %v", block, err)
	}
}

func TestLoadManifestValidation(t *testing.T) {
	if _, err := catalog.LoadManifest(writeManifest(t, `{"entities": []}`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing revision_id: %v", err)
	}
	if _, err := catalog.LoadManifest(writeManifest(t, `{not json`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("malformed JSON: %v", err)
	}
	if _, err := catalog.LoadManifest(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file must error")
	}
}

func TestImportRejectsUnknownKind(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	manifest := &catalog.Manifest{
		RevisionID: "rev-a",
		Entities: []catalog.ManifestEntity{
			{ID: "x1", Kind: "region"},
		},
	}
	_, err := store.Import(context.Background(), manifest)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown kind: %v", err)
	}
}
