package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoundExpirer advances rounds whose answer deadline has passed.
type RoundExpirer interface {
	ExpireDueRounds(ctx context.Context, limit int) (int, error)
}

// DeadlineWorker periodically force-advances expired rounds so a game never
// stalls when clients stop calling advance.
type DeadlineWorker struct {
	expirer   RoundExpirer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

func NewDeadlineWorker(expirer RoundExpirer, interval time.Duration, batchSize int, logger zerolog.Logger) *DeadlineWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DeadlineWorker{
		expirer:   expirer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start begins the background loop. Calling Start twice is a no-op.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info().Dur("interval", w.interval).Msg("deadline worker started")
	go w.run(ctx, w.stopCh, w.doneCh)
}

// Stop halts the loop and waits for the in-flight sweep.
func (w *DeadlineWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	w.logger.Info().Msg("deadline worker stopped")
}

func (w *DeadlineWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *DeadlineWorker) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *DeadlineWorker) RunOnce(ctx context.Context) int {
	advanced, err := w.expirer.ExpireDueRounds(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("deadline sweep failed")
		return 0
	}
	if advanced > 0 {
		w.logger.Info().Int("advanced", advanced).Msg("expired rounds advanced")
	}
	return advanced
}
