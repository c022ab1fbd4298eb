package service

import (
	"context"
	"fmt"

	"dramaforge/shared/models"

	"go.uber.org/zap"
)

// RequestCandidates запрашивает следующий набор кандидатов. Требует WATCHING.
// При успехе сессия переходит в CHOOSING, при ошибке генерации остается в WATCHING.
func (s *Session) RequestCandidates(ctx context.Context) error {
	s.mu.Lock()
	epoch, err := s.beginLocked("request candidates", models.SessionStateWatching, models.SessionStateGenerating)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	dramaID := s.drama.ID
	node := s.currentNodeLocked()
	s.mu.Unlock()
	s.publish(models.SessionEventStateChanged)

	candidates, genErr := s.deps.Candidates.Generate(ctx, dramaID, node)

	s.mu.Lock()
	if err := s.staleLocked(epoch, "request candidates"); err != nil {
		s.mu.Unlock()
		return err
	}
	if genErr != nil {
		s.state = models.SessionStateWatching
		s.mu.Unlock()
		generationFailuresTotal.WithLabelValues("candidates").Inc()
		s.publish(models.SessionEventStateChanged)
		return genErr
	}
	s.live = candidates
	s.stashed = nil
	s.state = models.SessionStateChoosing
	s.mu.Unlock()

	s.publish(models.SessionEventStateChanged)
	return nil
}

// RefreshCandidates заменяет текущий набор новым. Сначала тратится бесплатное
// обновление, иначе списывается RefreshCost. Если генерация не удалась,
// ничего не списывается и старый набор остается.
func (s *Session) RefreshCandidates(ctx context.Context) error {
	s.mu.Lock()
	if s.state != models.SessionStateChoosing {
		defer s.mu.Unlock()
		return s.stateError("refresh candidates")
	}
	free := s.ledger.DailyRefreshRemaining() > 0
	if !free && !s.ledger.CanSpend(s.cfg.RefreshCost) {
		points := s.ledger.Points()
		s.mu.Unlock()
		return fmt.Errorf("%w: refresh costs %d, balance %d", models.ErrInsufficientPoints, s.cfg.RefreshCost, points.Balance)
	}
	epoch, _ := s.beginLocked("refresh candidates", models.SessionStateChoosing, models.SessionStateGenerating)
	dramaID := s.drama.ID
	node := s.currentNodeLocked()
	s.mu.Unlock()
	s.publish(models.SessionEventStateChanged)

	candidates, genErr := s.deps.Candidates.Generate(ctx, dramaID, node)

	s.mu.Lock()
	if err := s.staleLocked(epoch, "refresh candidates"); err != nil {
		s.mu.Unlock()
		return err
	}
	if genErr != nil {
		s.state = models.SessionStateChoosing
		s.mu.Unlock()
		generationFailuresTotal.WithLabelValues("candidates").Inc()
		s.publish(models.SessionEventStateChanged)
		return genErr
	}

	mode := "free"
	if !s.ledger.ConsumeDailyRefresh() {
		mode = "paid"
		if err := s.ledger.Spend(s.cfg.RefreshCost); err != nil {
			s.state = models.SessionStateChoosing
			s.mu.Unlock()
			return err
		}
	}
	s.live = candidates
	s.stashed = nil
	s.state = models.SessionStateChoosing
	s.mu.Unlock()

	refreshesTotal.WithLabelValues(mode).Inc()
	s.logger.Debug("Candidates refreshed", zap.String("mode", mode))
	if mode == "paid" {
		s.publish(models.SessionEventPointsChanged)
	} else {
		s.publish(models.SessionEventStateChanged)
	}
	return nil
}

// SelectCandidate подтверждает кандидата как следующий узел.
//
// Первым выполняется коммит в реестр, только он может завершиться ошибкой.
// Тогда сессия возвращается в CHOOSING без изменений. После успешного коммита
// награда, новый узел, сброс кандидатов и смена состояния применяются вместе,
// а подтверждение в сети передается в Reconciler. Отмена ctx коммит не прерывает.
func (s *Session) SelectCandidate(ctx context.Context, candidateID string) error {
	s.mu.Lock()
	if s.state != models.SessionStateChoosing {
		defer s.mu.Unlock()
		return s.stateError("select candidate")
	}
	var chosen *models.CandidateFrame
	for i := range s.live {
		if s.live[i].CandidateID == candidateID {
			c := s.live[i]
			chosen = &c
			break
		}
	}
	if chosen == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: candidate %s is not in the live set", models.ErrInvalidState, candidateID)
	}
	s.state = models.SessionStateConfirming
	dramaID := s.drama.ID
	parent := s.currentNodeLocked()
	s.mu.Unlock()
	s.publish(models.SessionEventStateChanged)

	commitCtx := context.WithoutCancel(ctx)
	creator, err := s.deps.Identity.CurrentIdentity(commitCtx)
	if err == nil {
		var registered []models.Asset
		registered, err = s.deps.Registry.CommitConfirmation(commitCtx, chosen.FrameData, chosen.NewAssets, creator)
		if err == nil {
			s.completeConfirmation(dramaID, parent, chosen, registered, creator)
			return nil
		}
	}

	s.mu.Lock()
	s.state = models.SessionStateChoosing
	s.mu.Unlock()
	s.logger.Warn("Confirmation failed, session unchanged", zap.String("candidateID", candidateID), zap.Error(err))
	s.publish(models.SessionEventStateChanged)
	return err
}

func (s *Session) completeConfirmation(dramaID string, parent models.StoryNode, chosen *models.CandidateFrame, registered []models.Asset, creator string) {
	node := models.StoryNode{
		NodeID:         s.deps.NewID(),
		ParentNodeIDs:  []string{parent.NodeID},
		Depth:          parent.Depth + 1,
		ConfirmedFrame: chosen.FrameData.Clone(),
	}

	s.mu.Lock()
	s.path = append(s.path, node)
	ended := len(s.path)-1 >= s.targetFramesLocked()
	if !ended || s.cfg.RewardFinalFrame {
		s.ledger.Earn(s.cfg.ConfirmationReward)
	}
	s.live = nil
	s.stashed = nil
	if ended {
		s.state = models.SessionStateEnded
	} else {
		s.state = models.SessionStateWatching
	}
	s.mu.Unlock()

	confirmationsTotal.Inc()
	if ended {
		dramasCompletedTotal.Inc()
	}
	s.logger.Info("Node committed",
		zap.String("nodeID", node.NodeID),
		zap.Int("depth", node.Depth),
		zap.Bool("ended", ended),
		zap.Int("registeredAssets", len(registered)),
	)

	if s.deps.Reconciler != nil {
		s.deps.Reconciler.Submit(models.SettlementRequest{
			SessionID:        s.id,
			DramaID:          dramaID,
			Node:             node,
			RegisteredAssets: registered,
			Creator:          creator,
		})
	}
	s.publish(models.SessionEventNodeCommitted)
}
