// Package catalog persists the entity records (sheets and blocks) of each
// document revision and serves entity reads by ID or revision.
//
// The catalog is populated by the import command from a revision manifest;
// extraction of sheets and blocks from source documents happens upstream
// and is out of scope here. Raster paths stored alongside entities let the
// file-backed rasterizer resolve an entity to its image.
package catalog
