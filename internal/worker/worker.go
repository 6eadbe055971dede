package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"brightside/internal/usecase"
)

// Refresher определяет интерфейс цикла обновления новостей.
// Используется для внедрения зависимости в воркер.
type Refresher interface {
	Refresh(ctx context.Context) (usecase.RefreshReport, error)
}

// Worker реализует фонового воркера для периодического обновления кэша новостей.
// Первый цикл выполняется сразу после запуска, следующие - по таймеру
// или по внешнему запросу через Trigger.
type Worker struct {
	refresher Refresher
	interval  time.Duration
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	trigger   chan struct{}
	done      chan struct{}
	cycles    atomic.Int64
	stopOnce  sync.Once
}

// New создает нового воркера.
// Принимает цикл обновления, интервал и логгер.
func New(refresher Refresher, interval time.Duration, log *slog.Logger) *Worker {
	return &Worker{
		refresher: refresher,
		interval:  interval,
		log:       log.With(slog.String("component", "worker")),
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start запускает воркер в отдельной горутине.
func (w *Worker) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go w.run()
}

// Stop отменяет текущий цикл и дожидается завершения горутины воркера.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			return
		}
		w.cancel()
		<-w.done
	})
}

// Trigger просит воркера выполнить внеочередной цикл. Если запрос уже
// ожидает выполнения, новый не добавляется. Возвращает false, если запрос отброшен.
func (w *Worker) Trigger() bool {
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Cycles возвращает число завершенных циклов.
func (w *Worker) Cycles() int64 { return w.cycles.Load() }

// Interval возвращает интервал обновления.
func (w *Worker) Interval() time.Duration { return w.interval }

func (w *Worker) run() {
	defer close(w.done)
	w.log.Info("Feed processing worker started",
		slog.String("interval", w.interval.String()),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.refresh("startup")
	for {
		select {
		case <-ticker.C:
			w.refresh("schedule")
		case <-w.trigger:
			w.refresh("manual")
			ticker.Reset(w.interval)
		case <-w.ctx.Done():
			w.log.Info("Worker stopping")
			return
		}
	}
}

func (w *Worker) refresh(reason string) {
	if w.ctx.Err() != nil {
		return
	}
	if w.refresher == nil {
		w.log.Error("refresher no init")
		return
	}
	report, err := w.refresher.Refresh(w.ctx)
	w.cycles.Add(1)
	if err != nil {
		w.log.Error("Feed processing cycle failed",
			slog.String("reason", reason),
			slog.Int("errors", report.Failed),
			slog.Any("error", err),
		)
		return
	}
	w.log.Debug("Feed processing cycle finished",
		slog.String("reason", reason),
		slog.Int("kept", report.Kept),
	)
}
