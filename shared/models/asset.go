package models

import (
	"fmt"
	"strings"
)

// AssetType - тип ассета.
type AssetType string

const (
	AssetTypeActor AssetType = "ACTOR"
	AssetTypeScene AssetType = "SCENE"
	AssetTypeProp  AssetType = "PROP"
)

// ParseAssetType преобразует ввод пользователя в AssetType. Пустая строка дает пустой тип.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "", AssetTypeActor, AssetTypeScene, AssetTypeProp:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown asset type %q", ErrBadRequest, s)
	}
}

// Asset - переиспользуемый персонаж, сцена или реквизит.
type Asset struct {
	AssetID      string    `json:"assetId" db:"asset_id" yaml:"asset_id"`
	AssetType    AssetType `json:"assetType" db:"asset_type" yaml:"asset_type"`
	Name         string    `json:"name" db:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" db:"description" yaml:"description"`
	ThumbnailURL string    `json:"thumbnailUrl" db:"thumbnail_url" yaml:"thumbnail_url"`
	Creator      string    `json:"creator" db:"creator" yaml:"creator"`
	UsageCount   int       `json:"usageCount" db:"usage_count" yaml:"usage_count"`
}

// AssetQuery фильтрует списки реестра. Пустые поля подходят под всё.
type AssetQuery struct {
	Text string
	Type AssetType
}

// Matches проверяет ассет на соответствие запросу: подстрока в имени или
// описании без учета регистра и, при необходимости, тип.
func (q AssetQuery) Matches(a Asset) bool {
	if q.Type != "" && a.AssetType != q.Type {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Name), text) ||
		strings.Contains(strings.ToLower(a.Description), text)
}

// LessByUsage сортирует по usageCount по убыванию, затем по имени.
func LessByUsage(a, b Asset) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.AssetID < b.AssetID
}
