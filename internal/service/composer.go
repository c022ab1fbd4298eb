package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dramaforge/shared/models"
)

// Composition - описание кадра от зрителя: актеры, не больше одной сцены,
// реквизит и сценарий.
type Composition struct {
	Actors []models.Asset
	Scene  *models.Asset
	Props  []models.Asset
	Script string
}

// Composer хранит композицию в режиме редактирования. Актеры и реквизит -
// упорядоченные множества по id ассета, повторный выбор ничего не меняет.
// Не потокобезопасен, доступ сериализует сессия.
type Composer struct {
	maxScriptLength int
	actors          []models.Asset
	scene           *models.Asset
	props           []models.Asset
	script          string
}

// NewComposer создает пустую композицию с лимитом длины сценария в символах.
func NewComposer(maxScriptLength int) *Composer {
	return &Composer{maxScriptLength: maxScriptLength}
}

// SelectActor добавляет актера.
func (c *Composer) SelectActor(a models.Asset) error {
	if err := requireType(a, models.AssetTypeActor); err != nil {
		return err
	}
	c.actors = addUnique(c.actors, a)
	return nil
}

// RemoveActor убирает актера, если он выбран.
func (c *Composer) RemoveActor(assetID string) {
	c.actors = removeByID(c.actors, assetID)
}

// SetScene заменяет сцену.
func (c *Composer) SetScene(a models.Asset) error {
	if err := requireType(a, models.AssetTypeScene); err != nil {
		return err
	}
	c.scene = &a
	return nil
}

// ClearScene сбрасывает сцену.
func (c *Composer) ClearScene() {
	c.scene = nil
}

// AddProp добавляет реквизит.
func (c *Composer) AddProp(a models.Asset) error {
	if err := requireType(a, models.AssetTypeProp); err != nil {
		return err
	}
	c.props = addUnique(c.props, a)
	return nil
}

// RemoveProp убирает реквизит, если он выбран.
func (c *Composer) RemoveProp(assetID string) {
	c.props = removeByID(c.props, assetID)
}

// SetScript заменяет текст сценария. Длина проверяется в Validate, чтобы
// слишком длинный черновик можно было сократить.
func (c *Composer) SetScript(script string) {
	c.script = script
}

// Load заменяет композицию целиком. При ошибке композиция не меняется.
func (c *Composer) Load(comp Composition) error {
	next := NewComposer(c.maxScriptLength)
	for _, a := range comp.Actors {
		if err := next.SelectActor(a); err != nil {
			return err
		}
	}
	if comp.Scene != nil {
		if err := next.SetScene(*comp.Scene); err != nil {
			return err
		}
	}
	for _, p := range comp.Props {
		if err := next.AddProp(p); err != nil {
			return err
		}
	}
	next.SetScript(comp.Script)
	*c = *next
	return nil
}

// Validate возвращает models.ErrValidation с первым невыполненным требованием.
func (c *Composer) Validate() error {
	script := strings.TrimSpace(c.script)
	switch {
	case len(c.actors) == 0:
		return fmt.Errorf("%w: at least one actor is required", models.ErrValidation)
	case c.scene == nil:
		return fmt.Errorf("%w: a scene is required", models.ErrValidation)
	case script == "":
		return fmt.Errorf("%w: script must not be empty", models.ErrValidation)
	case utf8.RuneCountInString(script) > c.maxScriptLength:
		return fmt.Errorf("%w: script exceeds %d characters", models.ErrValidation, c.maxScriptLength)
	}
	return nil
}

// CanSubmit сообщает, готова ли композиция к генерации.
func (c *Composer) CanSubmit() bool {
	return c.Validate() == nil
}

// ToGenerationParams преобразует композицию в запрос к генератору для шага после node.
func (c *Composer) ToGenerationParams(dramaID string, node models.StoryNode) models.CompositionParams {
	params := models.CompositionParams{
		DramaID:  dramaID,
		Node:     node,
		Script:   strings.TrimSpace(c.script),
		ActorIDs: assetIDs(c.actors),
		PropIDs:  assetIDs(c.props),
	}
	if c.scene != nil {
		params.SceneID = c.scene.AssetID
	}
	return params
}

// Assets возвращает все выбранные ассеты.
func (c *Composer) Assets() []models.Asset {
	out := make([]models.Asset, 0, len(c.actors)+len(c.props)+1)
	out = append(out, c.actors...)
	if c.scene != nil {
		out = append(out, *c.scene)
	}
	return append(out, c.props...)
}

// Reset очищает композицию.
func (c *Composer) Reset() {
	*c = Composer{maxScriptLength: c.maxScriptLength}
}

// Snapshot возвращает копию композиции.
func (c *Composer) Snapshot() *models.CompositionSnapshot {
	snap := &models.CompositionSnapshot{
		Actors:    append([]models.Asset{}, c.actors...),
		Props:     append([]models.Asset{}, c.props...),
		Script:    c.script,
		CanSubmit: c.CanSubmit(),
	}
	if c.scene != nil {
		scene := *c.scene
		snap.Scene = &scene
	}
	return snap
}

func requireType(a models.Asset, want models.AssetType) error {
	if strings.TrimSpace(a.AssetID) == "" {
		return fmt.Errorf("%w: asset id is required", models.ErrValidation)
	}
	if a.AssetType != want {
		return fmt.Errorf("%w: asset %s is %s, expected %s", models.ErrValidation, a.AssetID, a.AssetType, want)
	}
	return nil
}

func addUnique(list []models.Asset, a models.Asset) []models.Asset {
	for _, existing := range list {
		if existing.AssetID == a.AssetID {
			return list
		}
	}
	return append(list, a)
}

func removeByID(list []models.Asset, assetID string) []models.Asset {
	out := list[:0:0]
	for _, a := range list {
		if a.AssetID != assetID {
			out = append(out, a)
		}
	}
	return out
}

func assetIDs(list []models.Asset) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.AssetID)
	}
	return ids
}
