package service

import (
	"context"
	"errors"
	"fmt"

	"dramaforge/shared/models"

	"go.uber.org/zap"
)

// CompositionDraft ссылается на ассеты по id. Ассеты, которых нет в реестре,
// передаются в NewAssets (созданные зрителем).
type CompositionDraft struct {
	ActorIDs  []string
	SceneID   string
	PropIDs   []string
	Script    string
	NewAssets []models.Asset
}

// EnterCustomMode открывает пустую композицию. Требует CHOOSING.
func (s *Session) EnterCustomMode() error {
	s.mu.Lock()
	if s.state != models.SessionStateChoosing {
		defer s.mu.Unlock()
		return s.stateError("enter custom mode")
	}
	s.composer = NewComposer(s.cfg.MaxScriptLength)
	s.state = models.SessionStateCustomEditing
	s.mu.Unlock()

	s.publish(models.SessionEventStateChanged)
	return nil
}

// ExitCustomMode отбрасывает композицию и возвращает в CHOOSING.
func (s *Session) ExitCustomMode() error {
	s.mu.Lock()
	if s.state != models.SessionStateCustomEditing {
		defer s.mu.Unlock()
		return s.stateError("exit custom mode")
	}
	s.composer = nil
	s.state = models.SessionStateChoosing
	s.mu.Unlock()

	s.publish(models.SessionEventStateChanged)
	return nil
}

// UpdateComposition заменяет текущую композицию без отправки.
func (s *Session) UpdateComposition(ctx context.Context, draft CompositionDraft) (*models.CompositionSnapshot, error) {
	if err := s.requireCustomEditing("update composition"); err != nil {
		return nil, err
	}
	comp, err := s.resolveDraft(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != models.SessionStateCustomEditing {
		defer s.mu.Unlock()
		return nil, s.stateError("update composition")
	}
	if err := s.composer.Load(comp); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap := s.composer.Snapshot()
	s.mu.Unlock()
	return snap, nil
}

// SubmitCustomFrame превращает композицию в одного редактируемого кандидата.
//
// Композиция и баланс проверяются до вызова генератора, CustomFrameCost
// списывается только после успешной генерации. Кандидат заменяет текущий
// набор, а тот откладывается до отмены кандидата или следующей генерации.
func (s *Session) SubmitCustomFrame(ctx context.Context, draft CompositionDraft) error {
	if err := s.requireCustomEditing("submit custom frame"); err != nil {
		return err
	}
	comp, err := s.resolveDraft(ctx, draft)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != models.SessionStateCustomEditing {
		defer s.mu.Unlock()
		return s.stateError("submit custom frame")
	}
	// Черновик проверяется на копии: при любой ошибке текущая композиция остаётся прежней.
	next := NewComposer(s.cfg.MaxScriptLength)
	if err := next.Load(comp); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.ledger.CanSpend(s.cfg.CustomFrameCost) {
		points := s.ledger.Points()
		s.mu.Unlock()
		return fmt.Errorf("%w: custom frame costs %d, balance %d", models.ErrInsufficientPoints, s.cfg.CustomFrameCost, points.Balance)
	}
	params := next.ToGenerationParams(s.drama.ID, s.currentNodeLocked())
	authored := next.Assets()
	epoch, _ := s.beginLocked("submit custom frame", models.SessionStateCustomEditing, models.SessionStateGenerating)
	s.mu.Unlock()
	s.publish(models.SessionEventStateChanged)

	candidate, genErr := s.deps.Candidates.GenerateFromComposition(ctx, params)

	s.mu.Lock()
	if err := s.staleLocked(epoch, "submit custom frame"); err != nil {
		s.mu.Unlock()
		return err
	}
	if genErr != nil {
		s.state = models.SessionStateCustomEditing
		s.mu.Unlock()
		generationFailuresTotal.WithLabelValues("composition").Inc()
		s.publish(models.SessionEventStateChanged)
		return genErr
	}
	if err := s.ledger.Spend(s.cfg.CustomFrameCost); err != nil {
		s.state = models.SessionStateCustomEditing
		s.mu.Unlock()
		return err
	}
	candidate.NewAssets = authored
	if s.stashed == nil {
		s.stashed = s.live
	}
	s.live = []models.CandidateFrame{*candidate}
	s.composer = nil
	s.state = models.SessionStateChoosing
	s.mu.Unlock()

	customSubmissionsTotal.Inc()
	s.logger.Info("Custom frame submitted", zap.String("candidateID", candidate.CandidateID))
	s.publish(models.SessionEventPointsChanged)
	return nil
}

// DiscardCustomCandidate отбрасывает пользовательского кандидата и
// восстанавливает отложенный набор. Стоимость не возвращается.
func (s *Session) DiscardCustomCandidate() error {
	s.mu.Lock()
	if s.state != models.SessionStateChoosing {
		defer s.mu.Unlock()
		return s.stateError("discard custom candidate")
	}
	if s.stashed == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no custom candidate to discard", models.ErrInvalidState)
	}
	s.live = s.stashed
	s.stashed = nil
	s.mu.Unlock()

	s.publish(models.SessionEventStateChanged)
	return nil
}

func (s *Session) requireCustomEditing(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != models.SessionStateCustomEditing {
		return s.stateError(op)
	}
	return nil
}

// resolveDraft ищет ассеты в реестре, а отсутствующие берет из NewAssets.
func (s *Session) resolveDraft(ctx context.Context, draft CompositionDraft) (Composition, error) {
	authored := make(map[string]models.Asset, len(draft.NewAssets))
	for _, a := range draft.NewAssets {
		if err := validateAsset(a); err != nil {
			return Composition{}, err
		}
		authored[a.AssetID] = a
	}
	resolve := func(id string) (models.Asset, error) {
		a, err := s.deps.Registry.Find(ctx, id)
		if err == nil {
			return *a, nil
		}
		if !errors.Is(err, models.ErrAssetNotFound) {
			return models.Asset{}, err
		}
		if na, ok := authored[id]; ok {
			return na, nil
		}
		return models.Asset{}, err
	}

	comp := Composition{Script: draft.Script}
	for _, id := range draft.ActorIDs {
		a, err := resolve(id)
		if err != nil {
			return Composition{}, err
		}
		comp.Actors = append(comp.Actors, a)
	}
	if draft.SceneID != "" {
		a, err := resolve(draft.SceneID)
		if err != nil {
			return Composition{}, err
		}
		comp.Scene = &a
	}
	for _, id := range draft.PropIDs {
		a, err := resolve(id)
		if err != nil {
			return Composition{}, err
		}
		comp.Props = append(comp.Props, a)
	}
	return comp, nil
}
