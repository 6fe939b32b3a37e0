// Package raster resolves entity identifiers to the page or block images
// that alignment runs against.
package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"redline/internal/catalog"
	"redline/internal/services"
)

// Rasterizer loads the rendered image for an entity.
type Rasterizer interface {
	Load(ctx context.Context, entityID string) (image.Image, error)
}

// FileRasterizer serves rasters that were registered at import time,
// resolving relative paths against the configured raster directory.
type FileRasterizer struct {
	catalog *catalog.Store
	baseDir string
}

// NewFileRasterizer builds a catalog-backed rasterizer rooted at baseDir.
func NewFileRasterizer(store *catalog.Store, baseDir string) *FileRasterizer {
	return &FileRasterizer{catalog: store, baseDir: baseDir}
}

// Load decodes the raster image registered for the entity.
func (r *FileRasterizer) Load(ctx context.Context, entityID string) (image.Image, error) {
	path, err := r.catalog.RasterPath(ctx, entityID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "raster", "load", fmt.Sprintf("resolve raster for %s", entityID), err)
	}
	if path == "" {
		return nil, services.Wrap(services.ErrNotFound, "raster", "load", fmt.Sprintf("no raster registered for entity %s", entityID), nil)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "raster", "load", fmt.Sprintf("raster file missing for entity %s", entityID), err)
		}
		return nil, services.Wrap(services.ErrTransient, "raster", "load", fmt.Sprintf("open raster for %s", entityID), err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "raster", "load", fmt.Sprintf("decode raster %s", path), err)
	}
	return img, nil
}

// WritePNG stores an image under the raster directory and returns the
// path relative to it, suitable for catalog registration.
func WritePNG(baseDir, name string, img image.Image) (string, error) {
	rel := name + ".png"
	full := filepath.Join(baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create raster dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create raster file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encode raster png: %w", err)
	}
	return rel, nil
}
