package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const snapshotSaveTimeout = 5 * time.Second

// SessionManager держит активные сессии в памяти. Сессия, простаивающая
// дольше idle TTL, вытесняется, а её последний снапшот остается в хранилище
// для чтения.
type SessionManager struct {
	cfg         GameplayConfig
	deps        SessionDeps
	sessions    *cache.Cache
	snapshots   interfaces.SnapshotRepository
	snapshotTTL time.Duration
	logger      *zap.Logger
}

// NewSessionManager создает менеджер сессий.
func NewSessionManager(cfg GameplayConfig, deps SessionDeps, snapshots interfaces.SnapshotRepository, idleTTL, snapshotTTL time.Duration, logger *zap.Logger) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = logger
	}
	m := &SessionManager{
		cfg:         cfg,
		deps:        deps,
		sessions:    cache.New(idleTTL, idleTTL/2+time.Second),
		snapshots:   snapshots,
		snapshotTTL: snapshotTTL,
		logger:      logger.Named("SessionManager"),
	}
	m.sessions.OnEvicted(m.onEvicted)
	return m
}

func (m *SessionManager) onEvicted(sessionID string, v interface{}) {
	activeSessions.Dec()
	if m.deps.Reconciler != nil {
		m.deps.Reconciler.ForgetSession(sessionID)
	}
	sess, ok := v.(*Session)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
	defer cancel()
	if err := m.snapshots.Save(ctx, sess.Snapshot(), m.snapshotTTL); err != nil {
		m.logger.Error("Failed to save snapshot of evicted session", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}
	m.logger.Info("Session evicted", zap.String("sessionID", sessionID))
}

// Create создает сессию и загружает в нее драму.
func (m *SessionManager) Create(ctx context.Context, dramaID string) (*Session, error) {
	id := uuid.NewString()
	sess := NewSession(id, m.cfg, m.deps)
	if err := sess.LoadDrama(ctx, dramaID); err != nil {
		return nil, err
	}
	m.sessions.SetDefault(id, sess)
	activeSessions.Inc()
	m.logger.Info("Session created", zap.String("sessionID", id), zap.String("dramaID", dramaID))
	return sess, nil
}

// Get возвращает активную сессию и продлевает ее TTL.
func (m *SessionManager) Get(sessionID string) (*Session, error) {
	v, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	sess := v.(*Session)
	m.sessions.SetDefault(sessionID, sess)
	return sess, nil
}

// Snapshot возвращает состояние активной сессии или сохраненный снапшот
// вытесненной.
func (m *SessionManager) Snapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	if v, ok := m.sessions.Get(sessionID); ok {
		return v.(*Session).Snapshot(), nil
	}
	snap, err := m.snapshots.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			m.logger.Error("Failed to read stored snapshot", zap.String("sessionID", sessionID), zap.Error(err))
		}
		return nil, err
	}
	return snap, nil
}

// Persist сохраняет текущий снапшот активной сессии.
func (m *SessionManager) Persist(ctx context.Context, sess *Session) error {
	return m.snapshots.Save(ctx, sess.Snapshot(), m.snapshotTTL)
}

// Close вытесняет сессию. Снапшот остается доступным.
func (m *SessionManager) Close(sessionID string) error {
	if _, ok := m.sessions.Get(sessionID); !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	m.sessions.Delete(sessionID)
	return nil
}

// CloseAll вытесняет все сессии, обычно при остановке.
func (m *SessionManager) CloseAll() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}

// Len возвращает число активных сессий.
func (m *SessionManager) Len() int {
	return m.sessions.ItemCount()
}
