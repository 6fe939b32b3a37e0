package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"redline/internal/entity"
	"redline/internal/services"
)

// ManifestEntity is one entity record in a revision manifest file.
type ManifestEntity struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	Index         int            `json:"index"`
	SheetNumber   string         `json:"sheet_number,omitempty"`
	Title         string         `json:"title,omitempty"`
	Discipline    string         `json:"discipline,omitempty"`
	BlockType     string         `json:"block_type,omitempty"`
	Bounds        *entity.Bounds `json:"bounds,omitempty"`
	TextSignature string         `json:"text_signature,omitempty"`
	MetadataName  string         `json:"metadata_name,omitempty"`
	RasterPath    string         `json:"raster_path,omitempty"`
}

// Manifest describes all entities of one document revision.
type Manifest struct {
	RevisionID string           `json:"revision_id"`
	Entities   []ManifestEntity `json:"entities"`
}

// LoadManifest reads and validates a revision manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "load manifest", "invalid JSON", err)
	}
	if strings.TrimSpace(manifest.RevisionID) == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "load manifest", "revision_id is required", nil)
	}
	return &manifest, nil
}

// Import stores every entity of a manifest, replacing prior records with
// the same IDs. Returns the number of entities written.
func (s *Store) Import(ctx context.Context, manifest *Manifest) (int, error) {
	if manifest == nil {
		return 0, services.Wrap(services.ErrValidation, "catalog", "import", "manifest is nil", nil)
	}
	count := 0
	for i := range manifest.Entities {
		me := &manifest.Entities[i]
		kind, ok := entity.ParseKind(me.Kind)
		if !ok {
			return count, services.Wrap(services.ErrValidation, "catalog", "import",
				fmt.Sprintf("entity %s: unknown kind %q", me.ID, me.Kind), nil)
		}
		rec := &entity.Entity{
			ID:            me.ID,
			RevisionID:    manifest.RevisionID,
			Kind:          kind,
			Index:         me.Index,
			SheetNumber:   me.SheetNumber,
			Title:         me.Title,
			Discipline:    me.Discipline,
			BlockType:     me.BlockType,
			Bounds:        me.Bounds,
			TextSignature: me.TextSignature,
			MetadataName:  me.MetadataName,
		}
		if err := s.Put(ctx, rec, me.RasterPath); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
