package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"go.uber.org/zap"
)

// ReconcilerConfig - настройки повторов подтверждения.
type ReconcilerConfig struct {
	// Timeout ограничивает один вызов Settle. 0 - без ограничения.
	Timeout time.Duration
	// MaxAttempts - после стольких неудач узел больше не повторяется.
	// 0 - повторять бесконечно.
	MaxAttempts int
}

// Reconciler асинхронно подтверждает узлы в сети. Узел фиксируется локально
// до подтверждения и никогда не откатывается. Неудачные подтверждения лежат в
// очереди ожидания, пока RetryPending не пройдет для них успешно.
type Reconciler struct {
	settler  interfaces.Settler
	notifier interfaces.EventNotifier
	cfg      ReconcilerConfig
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	pending  map[string]*models.PendingSettlement
	inFlight map[string]struct{}
	receipts map[string]settledNode
	wg       sync.WaitGroup
}

type settledNode struct {
	sessionID string
	receipt   models.Receipt
}

// NewReconciler создает Reconciler. notifier может быть nil.
func NewReconciler(settler interfaces.Settler, notifier interfaces.EventNotifier, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		settler:  settler,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.Named("Reconciler"),
		pending:  make(map[string]*models.PendingSettlement),
		inFlight: make(map[string]struct{}),
		receipts: make(map[string]settledNode),
	}
}

// Submit запускает подтверждение узла в фоне.
func (r *Reconciler) Submit(req models.SettlementRequest) {
	r.mu.Lock()
	r.inFlight[req.Node.NodeID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Ошибка уже записана в очередь ожидания
		_ = r.settle(context.Background(), req)
	}()
}

// Wait ждет завершения всех подтверждений, запущенных через Submit.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// settle ожидает, что узел уже помечен как выполняемый; отметка снимается
// вместе с записью результата.
func (r *Reconciler) settle(ctx context.Context, req models.SettlementRequest) error {
	log := r.logger.With(zap.String("sessionID", req.SessionID), zap.String("nodeID", req.Node.NodeID))

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	receipt, err := r.settler.Settle(ctx, req)
	if err == nil && receipt == nil {
		err = errors.New("settler returned no receipt")
	}
	if err != nil {
		settlementsTotal.WithLabelValues("failed").Inc()
		r.mu.Lock()
		delete(r.inFlight, req.Node.NodeID)
		entry, ok := r.pending[req.Node.NodeID]
		if !ok {
			entry = &models.PendingSettlement{Request: req}
			r.pending[req.Node.NodeID] = entry
		}
		entry.Attempts++
		entry.LastError = err.Error()
		entry.FailedAt = r.now()
		attempts := entry.Attempts
		r.mu.Unlock()

		log.Warn("Settlement failed, node kept locally", zap.Int("attempts", attempts), zap.Error(err))
		return fmt.Errorf("%w: %w", models.ErrSettlementFailed, err)
	}

	settlementsTotal.WithLabelValues("ok").Inc()
	r.mu.Lock()
	delete(r.inFlight, req.Node.NodeID)
	delete(r.pending, req.Node.NodeID)
	r.receipts[req.Node.NodeID] = settledNode{sessionID: req.SessionID, receipt: *receipt}
	r.mu.Unlock()

	log.Info("Node settled", zap.String("transactionID", receipt.TransactionID))
	if r.notifier != nil {
		rc := *receipt
		r.notifier.Notify(models.SessionEvent{
			Type:      models.SessionEventSettlementDone,
			SessionID: req.SessionID,
			Receipt:   &rc,
		})
	}
	return nil
}

// RetryPending повторяет все ожидающие подтверждения, у которых остались
// попытки. Возвращает число успешных и объединенные ошибки остальных.
func (r *Reconciler) RetryPending(ctx context.Context) (int, error) {
	return r.retry(ctx, "")
}

// RetryPendingFor - RetryPending только для одной сессии.
func (r *Reconciler) RetryPendingFor(ctx context.Context, sessionID string) (int, error) {
	return r.retry(ctx, sessionID)
}

func (r *Reconciler) retry(ctx context.Context, sessionID string) (int, error) {
	// Узлы, которые уже подтверждаются другим вызовом, пропускаются.
	r.mu.Lock()
	batch := make([]models.SettlementRequest, 0, len(r.pending))
	for nodeID, p := range r.pending {
		if sessionID != "" && p.Request.SessionID != sessionID {
			continue
		}
		if r.cfg.MaxAttempts > 0 && p.Attempts >= r.cfg.MaxAttempts {
			continue
		}
		if _, busy := r.inFlight[nodeID]; busy {
			continue
		}
		r.inFlight[nodeID] = struct{}{}
		batch = append(batch, p.Request)
	}
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Node.Depth < batch[j].Node.Depth })

	settled := 0
	var errs []error
	for i, req := range batch {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			r.release(batch[i:])
			break
		}
		if err := r.settle(ctx, req); err != nil {
			errs = append(errs, err)
			continue
		}
		settled++
	}
	return settled, errors.Join(errs...)
}

func (r *Reconciler) release(reqs []models.SettlementRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range reqs {
		delete(r.inFlight, req.Node.NodeID)
	}
}

// Run повторяет ожидающие подтверждения каждые interval, пока жив ctx.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := r.RetryPending(ctx)
			if settled > 0 || err != nil {
				r.logger.Info("Reconciliation pass finished", zap.Int("settled", settled), zap.Error(err))
			}
		}
	}
}

// Pending возвращает ожидающие подтверждения сессии, от мелких узлов к глубоким.
// Пустой sessionID - все ожидающие.
func (r *Reconciler) Pending(sessionID string) []models.PendingSettlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PendingSettlement, 0, len(r.pending))
	for _, p := range r.pending {
		if sessionID != "" && p.Request.SessionID != sessionID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Request.Node.Depth != out[j].Request.Node.Depth {
			return out[i].Request.Node.Depth < out[j].Request.Node.Depth
		}
		return out[i].Request.Node.NodeID < out[j].Request.Node.NodeID
	})
	return out
}

// Receipt возвращает квитанцию узла, если он подтвержден.
func (r *Reconciler) Receipt(nodeID string) (*models.Receipt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settled, ok := r.receipts[nodeID]
	if !ok {
		return nil, false
	}
	rc := settled.receipt
	return &rc, true
}

// ForgetSession удаляет квитанции закрытой сессии. Ожидающие подтверждения
// остаются в очереди.
func (r *Reconciler) ForgetSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for nodeID, settled := range r.receipts {
		if settled.sessionID == sessionID {
			delete(r.receipts, nodeID)
		}
	}
}
