package generator

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"go.uber.org/zap"
)

var _ interfaces.FrameGenerator = (*CatalogGenerator)(nil)

const (
	minCustomDuration   = 3.0
	runesPerSecond      = 15
	customVideoTemplate = "generated://%s/%d/custom"
)

// CatalogGenerator предлагает продолжения из библиотеки сценариев каталога.
// Выбор зависит только от seed, драмы, глубины узла и слота, поэтому одна и
// та же сессия получает тех же кандидатов.
type CatalogGenerator struct {
	seed    uint64
	mu      sync.RWMutex
	byDrama map[string][]models.ScriptOutline
	generic []models.ScriptOutline
	logger  *zap.Logger
}

// NewCatalogGenerator раскладывает заготовки по драмам. Заготовки без dramaId
// используются для драм, у которых нет своих.
func NewCatalogGenerator(outlines []models.ScriptOutline, seed uint64, logger *zap.Logger) *CatalogGenerator {
	g := &CatalogGenerator{
		seed:    seed,
		byDrama: make(map[string][]models.ScriptOutline),
		logger:  logger.Named("CatalogGenerator"),
	}
	for _, o := range outlines {
		if o.DramaID == "" {
			g.generic = append(g.generic, o)
			continue
		}
		g.byDrama[o.DramaID] = append(g.byDrama[o.DramaID], o)
	}
	return g
}

// GenerateFrame выбирает заготовку для одного слота после req.Node.
// Слоты одного набора получают разные заготовки, пока библиотеки хватает.
func (g *CatalogGenerator) GenerateFrame(ctx context.Context, req models.FrameRequest) (*models.FrameData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	outlines := g.byDrama[req.DramaID]
	if len(outlines) == 0 {
		outlines = g.generic
	}
	g.mu.RUnlock()

	if len(outlines) == 0 {
		return nil, fmt.Errorf("%w: no scripts for drama %s", models.ErrGenerationFailure, req.DramaID)
	}

	n := uint64(len(outlines))
	base := g.position(req.DramaID, req.Node.Depth) % n
	o := outlines[(base+uint64(req.Slot))%n]
	frame := &models.FrameData{
		Script:          o.Script,
		ThumbnailURL:    o.ThumbnailURL,
		VideoURL:        o.VideoURL,
		DurationSeconds: o.DurationSeconds,
		ActorIDs:        append([]string{}, o.ActorIDs...),
		SceneID:         o.SceneID,
		PropIDs:         append([]string{}, o.PropIDs...),
	}
	return frame, nil
}

// ComposeFrame собирает кадр из композиции зрителя. Длительность зависит от длины сценария.
func (g *CatalogGenerator) ComposeFrame(ctx context.Context, params models.CompositionParams) (*models.FrameData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script := strings.TrimSpace(params.Script)
	if script == "" {
		return nil, fmt.Errorf("%w: empty script", models.ErrGenerationFailure)
	}
	duration := float64(utf8.RuneCountInString(script)) / runesPerSecond
	if duration < minCustomDuration {
		duration = minCustomDuration
	}
	return &models.FrameData{
		Script:          script,
		VideoURL:        fmt.Sprintf(customVideoTemplate, params.DramaID, params.Node.Depth+1),
		DurationSeconds: duration,
		ActorIDs:        append([]string{}, params.ActorIDs...),
		SceneID:         params.SceneID,
		PropIDs:         append([]string{}, params.PropIDs...),
	}, nil
}

// AddOutlines добавляет заготовки в библиотеку во время работы.
func (g *CatalogGenerator) AddOutlines(outlines ...models.ScriptOutline) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, o := range outlines {
		if o.DramaID == "" {
			g.generic = append(g.generic, o)
			continue
		}
		g.byDrama[o.DramaID] = append(g.byDrama[o.DramaID], o)
	}
}

// position хэширует seed, драму и глубину в начальное смещение.
func (g *CatalogGenerator) position(dramaID string, depth int) uint64 {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], g.seed)
	h.Write(buf[:])
	h.Write([]byte(dramaID))
	binary.BigEndian.PutUint64(buf[:], uint64(depth))
	h.Write(buf[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
