package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionDeps - зависимости, общие для всех сессий процесса.
type SessionDeps struct {
	Dramas     interfaces.DramaRepository
	Registry   *AssetRegistry
	Candidates *CandidateService
	Identity   interfaces.IdentityProvider
	// Reconciler и Notifier необязательны.
	Reconciler *Reconciler
	Notifier   interfaces.EventNotifier
	Clock      func() time.Time
	NewID      func() string
	Logger     *zap.Logger
}

// Session - контроллер воспроизведения одной драмы для одного зрителя.
//
// В каждый момент активно ровно одно состояние. Операции, которые ходят в
// генератор или реестр, под блокировкой переводят сессию в GENERATING или
// CONFIRMING, отпускают блокировку на время вызова и берут её снова, чтобы
// применить результат. Конфликтующие операции в этом окне получают
// models.ErrSessionBusy, очереди нет. Загрузка и рестарт увеличивают epoch,
// результаты более ранних вызовов отбрасываются.
type Session struct {
	id     string
	cfg    GameplayConfig
	deps   SessionDeps
	ledger *PointsLedger
	logger *zap.Logger

	mu       sync.Mutex
	state    models.SessionState
	epoch    uint64
	drama    *models.Drama
	path     []models.StoryNode
	live     []models.CandidateFrame
	stashed  []models.CandidateFrame
	composer *Composer
}

// NewSession создает сессию в состоянии LOADING с новым счетом очков.
func NewSession(id string, cfg GameplayConfig, deps SessionDeps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		ledger: NewPointsLedger(cfg.InitialBalance, cfg.DailyFreeRefreshes),
		logger: deps.Logger.Named("Session").With(zap.String("sessionID", id)),
		state:  models.SessionStateLoading,
	}
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// State возвращает текущее состояние.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadDrama загружает драму и начинает воспроизведение с корневого узла.
// Путь, кандидаты, композиция и очки сбрасываются. При
// models.ErrDramaNotFound сессия не меняется.
func (s *Session) LoadDrama(ctx context.Context, dramaID string) error {
	s.mu.Lock()
	if s.state.IsBusy() {
		defer s.mu.Unlock()
		return s.stateError("load drama")
	}
	s.mu.Unlock()

	drama, err := s.deps.Dramas.GetByID(ctx, dramaID)
	if err != nil {
		s.logger.Warn("Failed to load drama", zap.String("dramaID", dramaID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.state.IsBusy() {
		defer s.mu.Unlock()
		return s.stateError("load drama")
	}
	s.drama = drama
	origin := models.StoryNode{
		NodeID:        s.deps.NewID(),
		ParentNodeIDs: []string{},
		Depth:         0,
	}
	if drama.OpeningFrame != nil {
		origin.ConfirmedFrame = drama.OpeningFrame.Clone()
	}
	s.path = []models.StoryNode{origin}
	s.resetProgressLocked()
	s.mu.Unlock()

	s.logger.Info("Drama loaded", zap.String("dramaID", dramaID), zap.Int("targetFrames", s.targetFrames()))
	s.publish(models.SessionEventStateChanged)
	return nil
}

// Restart возвращает сессию к корневому узлу загруженной драмы с очками по
// умолчанию. Повторный рестарт ничего не меняет. Рестарт во время генерации
// отбрасывает ее результат, во время подтверждения отклоняется с
// models.ErrSessionBusy.
func (s *Session) Restart(_ context.Context) error {
	s.mu.Lock()
	if s.state == models.SessionStateConfirming {
		defer s.mu.Unlock()
		return s.stateError("restart")
	}
	if s.drama == nil {
		s.epoch++
		s.state = models.SessionStateLoading
		s.mu.Unlock()
		return nil
	}
	s.path = s.path[:1]
	s.resetProgressLocked()
	s.mu.Unlock()

	s.logger.Info("Session restarted")
	s.publish(models.SessionEventStateChanged)
	return nil
}

// resetProgressLocked очищает всё, кроме драмы и корневого узла.
func (s *Session) resetProgressLocked() {
	s.epoch++
	s.live = nil
	s.stashed = nil
	s.composer = nil
	s.ledger.Reset(s.cfg.InitialBalance, s.cfg.DailyFreeRefreshes)
	s.state = models.SessionStateWatching
}

// Snapshot возвращает копию наблюдаемого состояния.
func (s *Session) Snapshot() *models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *models.SessionSnapshot {
	snap := &models.SessionSnapshot{
		SessionID:     s.id,
		State:         s.state,
		Flags:         s.state.Flags(),
		NodePath:      make([]models.StoryNode, 0, len(s.path)),
		Candidates:    make([]models.CandidateFrame, 0, len(s.live)),
		Points:        s.ledger.Points(),
		PendingChange: s.ledger.PeekChange(),
		TargetFrames:  s.targetFramesLocked(),
		TakenAt:       s.deps.Clock(),
	}
	if s.drama != nil {
		snap.DramaID = s.drama.ID
	}
	for _, n := range s.path {
		n.ParentNodeIDs = append([]string{}, n.ParentNodeIDs...)
		n.ConfirmedFrame = n.ConfirmedFrame.Clone()
		snap.NodePath = append(snap.NodePath, n)
	}
	for _, c := range s.live {
		c.FrameData = c.FrameData.Clone()
		c.NewAssets = append([]models.Asset(nil), c.NewAssets...)
		snap.Candidates = append(snap.Candidates, c)
	}
	if s.composer != nil {
		snap.Composition = s.composer.Snapshot()
	}
	return snap
}

// Points возвращает баланс и остаток бесплатных обновлений.
func (s *Session) Points() models.UserPoints {
	return s.ledger.Points()
}

// PeekPointsChange возвращает последнее изменение очков, не сбрасывая его.
func (s *Session) PeekPointsChange() *models.PointsChange {
	return s.ledger.PeekChange()
}

// ClearPointsChange сбрасывает последнее изменение очков.
func (s *Session) ClearPointsChange() {
	s.ledger.ClearChange()
}

// PendingSettlements возвращает узлы сессии, которые еще не подтверждены в сети.
func (s *Session) PendingSettlements() []models.PendingSettlement {
	if s.deps.Reconciler == nil {
		return nil
	}
	return s.deps.Reconciler.Pending(s.id)
}

func (s *Session) targetFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetFramesLocked()
}

func (s *Session) targetFramesLocked() int {
	if s.drama != nil && s.drama.TargetFrameCount > 0 {
		return s.drama.TargetFrameCount
	}
	return s.cfg.TargetFrameCount
}

func (s *Session) currentNodeLocked() models.StoryNode {
	n := s.path[len(s.path)-1]
	n.ParentNodeIDs = append([]string{}, n.ParentNodeIDs...)
	n.ConfirmedFrame = n.ConfirmedFrame.Clone()
	return n
}

// stateError формирует ошибку для операции, вызванной в неподходящем состоянии.
func (s *Session) stateError(op string) error {
	if s.state.IsBusy() {
		return fmt.Errorf("%w: cannot %s while %s", models.ErrSessionBusy, op, s.state)
	}
	return fmt.Errorf("%w: cannot %s in state %s", models.ErrInvalidState, op, s.state)
}

// beginLocked переводит сессию из want в состояние занятости и возвращает
// epoch, который нужно предъявить при завершении.
func (s *Session) beginLocked(op string, want, busy models.SessionState) (uint64, error) {
	if s.state != want {
		return 0, s.stateError(op)
	}
	s.state = busy
	return s.epoch, nil
}

// staleLocked проверяет, была ли загрузка или рестарт после получения epoch.
func (s *Session) staleLocked(epoch uint64, op string) error {
	if s.epoch == epoch {
		return nil
	}
	s.logger.Info("Discarding result of superseded operation", zap.String("op", op))
	return fmt.Errorf("%w: session restarted during %s", models.ErrInvalidState, op)
}

func (s *Session) publish(eventType models.SessionEventType) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Notify(models.SessionEvent{
		Type:      eventType,
		SessionID: s.id,
		Snapshot:  s.Snapshot(),
	})
}
