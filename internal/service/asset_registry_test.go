package service_test

import (
	"context"
	"errors"
	"testing"

	"dramaforge/internal/service"
	"dramaforge/shared/database"
	"dramaforge/shared/interfaces/mocks"
	"dramaforge/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seededAssets() []models.Asset {
	return []models.Asset{
		{AssetID: "actor-a", AssetType: models.AssetTypeActor, Name: "Alice", Description: "a detective", UsageCount: 3, Creator: "system"},
		{AssetID: "actor-b", AssetType: models.AssetTypeActor, Name: "Bob", Description: "a baker", UsageCount: 7, Creator: "system"},
		{AssetID: "actor-c", AssetType: models.AssetTypeActor, Name: "Carol", Description: "another detective", UsageCount: 3, Creator: "system"},
		{AssetID: "scene-s", AssetType: models.AssetTypeScene, Name: "Station", Creator: "system"},
		{AssetID: "prop-p", AssetType: models.AssetTypeProp, Name: "Pocket watch", Creator: "system"},
	}
}

func TestAssetRegistry_ListOrderedByUsageThenName(t *testing.T) {
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	actors, err := registry.List(context.Background(), models.AssetTypeActor)
	require.NoError(t, err)
	require.Len(t, actors, 3)
	assert.Equal(t, "actor-b", actors[0].AssetID)
	assert.Equal(t, "actor-a", actors[1].AssetID, "ties are broken by name")
	assert.Equal(t, "actor-c", actors[2].AssetID)
}

func TestAssetRegistry_SearchIsCaseInsensitive(t *testing.T) {
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	found, err := registry.Search(context.Background(), "DETECTIVE", "")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "actor-a", found[0].AssetID)
	assert.Equal(t, "actor-c", found[1].AssetID)

	found, err = registry.Search(context.Background(), "watch", models.AssetTypeActor)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestAssetRegistry_FindUnknown(t *testing.T) {
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(nil, zap.NewNop()), zap.NewNop())

	_, err := registry.Find(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrAssetNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAssetRegistry_RegisterIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	stored, err := registry.RegisterIfAbsent(ctx, models.Asset{AssetID: "actor-a", AssetType: models.AssetTypeActor, Name: "Impostor"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, 3, stored.UsageCount)

	_, err = registry.RegisterIfAbsent(ctx, models.Asset{AssetID: "x", AssetType: "WEAPON", Name: "Sword"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAssetRegistry_RecordUsage(t *testing.T) {
	ctx := context.Background()
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	require.NoError(t, registry.RecordUsage(ctx, "scene-s"))
	scene, err := registry.Find(ctx, "scene-s")
	require.NoError(t, err)
	assert.Equal(t, 1, scene.UsageCount)

	assert.ErrorIs(t, registry.RecordUsage(ctx, "ghost"), models.ErrAssetNotFound)
}

func TestAssetRegistry_CommitConfirmation_RegistersAuthoredAssets(t *testing.T) {
	ctx := context.Background()
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	authored := []models.Asset{
		{AssetID: "actor-new", AssetType: models.AssetTypeActor, Name: "Newcomer", UsageCount: 99},
		// Уже есть в реестре: не перерегистрируется
		{AssetID: "scene-s", AssetType: models.AssetTypeScene, Name: "Renamed station"},
	}
	frame := models.FrameData{ActorIDs: []string{"actor-new", "actor-a", "actor-a"}, SceneID: "scene-s"}

	registered, err := registry.CommitConfirmation(ctx, frame, authored, "viewer-1")
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, "actor-new", registered[0].AssetID)
	assert.Equal(t, "viewer-1", registered[0].Creator)

	newcomer, err := registry.Find(ctx, "actor-new")
	require.NoError(t, err)
	assert.Equal(t, 1, newcomer.UsageCount)
	assert.Equal(t, "viewer-1", newcomer.Creator)

	alice, _ := registry.Find(ctx, "actor-a")
	assert.Equal(t, 4, alice.UsageCount, "an asset referenced twice in one frame counts once")

	scene, _ := registry.Find(ctx, "scene-s")
	assert.Equal(t, "Station", scene.Name)
	assert.Equal(t, 1, scene.UsageCount)
}

func TestAssetRegistry_CommitConfirmation_UnknownAssetWritesNothing(t *testing.T) {
	ctx := context.Background()
	registry := service.NewAssetRegistry(database.NewMemoryAssetRepository(seededAssets(), zap.NewNop()), zap.NewNop())

	frame := models.FrameData{ActorIDs: []string{"actor-a"}, SceneID: "scene-ghost"}
	_, err := registry.CommitConfirmation(ctx, frame, nil, "viewer-1")
	assert.ErrorIs(t, err, models.ErrAssetNotFound)

	alice, _ := registry.Find(ctx, "actor-a")
	assert.Equal(t, 3, alice.UsageCount)
}

func TestAssetRegistry_CommitConfirmation_StorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.AssetRepository)
	registry := service.NewAssetRegistry(repo, zap.NewNop())
	storageErr := errors.New("connection reset")

	repo.On("Get", mock.Anything, "actor-a").Return(&models.Asset{AssetID: "actor-a"}, nil).Once()
	repo.On("CommitUsage", mock.Anything, []models.Asset(nil), []string{"actor-a"}).Return(storageErr).Once()

	_, err := registry.CommitConfirmation(ctx, models.FrameData{ActorIDs: []string{"actor-a"}}, nil, "viewer-1")
	assert.ErrorIs(t, err, storageErr)
	repo.AssertExpectations(t)
}
