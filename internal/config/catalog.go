package config

import (
	"fmt"

	"dramaforge/shared/models"

	"github.com/ilyakaznacheev/cleanenv"
)

// LoadCatalog читает YAML-каталог начальных данных.
func LoadCatalog(path string) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := cleanenv.ReadConfig(path, &catalog); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if err := validateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &catalog, nil
}

func validateCatalog(c *models.Catalog) error {
	dramaIDs := make(map[string]struct{}, len(c.Dramas))
	for i := range c.Dramas {
		d := &c.Dramas[i]
		if d.ID == "" {
			return fmt.Errorf("drama #%d has no id", i)
		}
		if _, dup := dramaIDs[d.ID]; dup {
			return fmt.Errorf("duplicate drama id %q", d.ID)
		}
		dramaIDs[d.ID] = struct{}{}
		if d.Status == "" {
			d.Status = models.DramaStatusPublished
		}
	}

	assetIDs := make(map[string]struct{}, len(c.Assets))
	for i := range c.Assets {
		a := &c.Assets[i]
		if a.AssetID == "" || a.Name == "" {
			return fmt.Errorf("asset #%d needs asset_id and name", i)
		}
		t, err := models.ParseAssetType(string(a.AssetType))
		if err != nil || t == "" {
			return fmt.Errorf("asset %q has invalid type %q", a.AssetID, a.AssetType)
		}
		a.AssetType = t
		if _, dup := assetIDs[a.AssetID]; dup {
			return fmt.Errorf("duplicate asset id %q", a.AssetID)
		}
		assetIDs[a.AssetID] = struct{}{}
		if a.Creator == "" {
			a.Creator = "system"
		}
	}

	for i, s := range c.Scripts {
		if _, ok := dramaIDs[s.DramaID]; s.DramaID != "" && !ok {
			return fmt.Errorf("script #%d references unknown drama %q", i, s.DramaID)
		}
		refs := models.FrameData{ActorIDs: s.ActorIDs, SceneID: s.SceneID, PropIDs: s.PropIDs}
		for _, id := range refs.AssetIDs() {
			if _, ok := assetIDs[id]; !ok {
				return fmt.Errorf("script #%d references unknown asset %q", i, id)
			}
		}
	}
	return nil
}
