package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// CandidateService формирует наборы кандидатов для следующего шага драмы.
type CandidateService struct {
	generator interfaces.FrameGenerator
	count     int
	period    int
	seed      uint64
	limiter   *rate.Limiter
	newID     func() string
	logger    *zap.Logger
}

// NewCandidateService создает сервис генерации кандидатов.
// limiter может быть nil, тогда вызовы генератора не ограничиваются.
func NewCandidateService(generator interfaces.FrameGenerator, cfg GameplayConfig, limiter *rate.Limiter, logger *zap.Logger) *CandidateService {
	return &CandidateService{
		generator: generator,
		count:     cfg.CandidatesPerGeneration,
		period:    cfg.EditablePeriod,
		seed:      cfg.EditableSeed,
		limiter:   limiter,
		newID:     uuid.NewString,
		logger:    logger.Named("CandidateService"),
	}
}

// EditableSlot возвращает редактируемый слот набора после узла глубины depth.
// Право на слот дает каждый period-й шаг, номер слота сдвигается с шагом.
// Результат зависит только от аргументов.
func EditableSlot(depth, count, period int, seed uint64) (int, bool) {
	if period <= 0 || count <= 0 || depth < 0 {
		return 0, false
	}
	step := depth + 1
	if step%period != 0 {
		return 0, false
	}
	return int((uint64(step) + seed) % uint64(count)), true
}

// Generate возвращает ровно CandidatesPerGeneration кандидатов для шага после
// node, не более одного редактируемого. Слоты генерируются параллельно, ошибка
// любого слота дает models.ErrGenerationFailure для всего набора.
func (s *CandidateService) Generate(ctx context.Context, dramaID string, node models.StoryNode) ([]models.CandidateFrame, error) {
	editableSlot, hasEditable := EditableSlot(node.Depth, s.count, s.period, s.seed)
	frames := make([]models.CandidateFrame, s.count)

	eg, egCtx := errgroup.WithContext(ctx)
	for slot := 0; slot < s.count; slot++ {
		slot := slot
		editable := hasEditable && slot == editableSlot
		eg.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(egCtx); err != nil {
					return err
				}
			}
			frame, err := s.generator.GenerateFrame(egCtx, models.FrameRequest{
				DramaID:  dramaID,
				Node:     node,
				Slot:     slot,
				Editable: editable,
			})
			if err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
			if frame == nil {
				return fmt.Errorf("slot %d: generator returned no frame", slot)
			}
			frames[slot] = models.CandidateFrame{
				CandidateID: s.newID(),
				FrameData:   frame.Clone(),
				IsEditable:  editable,
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		s.logger.Warn("Candidate generation failed",
			zap.String("dramaID", dramaID),
			zap.String("nodeID", node.NodeID),
			zap.Int("depth", node.Depth),
			zap.Error(err),
		)
		return nil, wrapGenerationError(err)
	}

	s.logger.Debug("Generated candidate set",
		zap.String("dramaID", dramaID),
		zap.String("nodeID", node.NodeID),
		zap.Int("count", len(frames)),
		zap.Bool("hasEditable", hasEditable),
	)
	return frames, nil
}

// GenerateFromComposition превращает композицию зрителя в одного редактируемого
// кандидата. Генератор отвечает за медиа, а сценарий и ассеты берутся из композиции.
func (s *CandidateService) GenerateFromComposition(ctx context.Context, params models.CompositionParams) (*models.CandidateFrame, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, wrapGenerationError(err)
		}
	}
	frame, err := s.generator.ComposeFrame(ctx, params)
	if err != nil {
		s.logger.Warn("Custom frame generation failed", zap.String("dramaID", params.DramaID), zap.Error(err))
		return nil, wrapGenerationError(err)
	}
	if frame == nil {
		return nil, wrapGenerationError(errors.New("generator returned no frame"))
	}

	out := frame.Clone()
	out.Script = strings.TrimSpace(params.Script)
	out.ActorIDs = append([]string(nil), params.ActorIDs...)
	out.SceneID = params.SceneID
	out.PropIDs = append([]string(nil), params.PropIDs...)

	return &models.CandidateFrame{
		CandidateID: s.newID(),
		FrameData:   out,
		IsEditable:  true,
	}, nil
}

func wrapGenerationError(err error) error {
	if errors.Is(err, models.ErrGenerationFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrGenerationFailure, err)
}
