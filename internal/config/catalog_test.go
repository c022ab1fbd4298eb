package config

import (
	"os"
	"path/filepath"
	"testing"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
dramas:
  - id: d1
    title: Night Train
    target_frame_count: 3
    opening_frame:
      script: The train leaves.
      scene_id: scene-s
assets:
  - asset_id: actor-a
    asset_type: actor
    name: Alice
  - asset_id: scene-s
    asset_type: SCENE
    name: Station
    creator: studio
scripts:
  - drama_id: d1
    script: Alice waves.
    actor_ids: [actor-a]
    scene_id: scene-s
  - script: Generic line.
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Dramas, 1)
	assert.Equal(t, models.DramaStatusPublished, catalog.Dramas[0].Status)
	require.NotNil(t, catalog.Dramas[0].OpeningFrame)
	assert.Equal(t, "scene-s", catalog.Dramas[0].OpeningFrame.SceneID)

	require.Len(t, catalog.Assets, 2)
	assert.Equal(t, models.AssetTypeActor, catalog.Assets[0].AssetType)
	assert.Equal(t, "system", catalog.Assets[0].Creator)
	assert.Equal(t, "studio", catalog.Assets[1].Creator)
	assert.Len(t, catalog.Scripts, 2)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate drama", "dramas:\n  - id: d1\n  - id: d1\n"},
		{"bad asset type", "assets:\n  - asset_id: a\n    asset_type: vehicle\n    name: Car\n"},
		{"asset without name", "assets:\n  - asset_id: a\n    asset_type: PROP\n"},
		{"script with unknown asset", "dramas:\n  - id: d1\nscripts:\n  - drama_id: d1\n    script: x\n    scene_id: nowhere\n"},
		{"script with unknown drama", "scripts:\n  - drama_id: d2\n    script: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoadConfig_GameplayPrefix(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("GAMEPLAY_REFRESH_COST", "25")
	t.Setenv("GAMEPLAY_REWARD_FINAL_FRAME", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Gameplay.RefreshCost)
	assert.True(t, cfg.Gameplay.RewardFinalFrame)
	assert.Equal(t, 30, cfg.Gameplay.CustomFrameCost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetAllowedOrigins())
}

func TestLoadConfig_UnknownStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := LoadConfig()
	assert.Error(t, err)
}
