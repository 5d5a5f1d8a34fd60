package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Relay/internal/telemetry"
)

// Default configuration values.
const (
	DefaultRetention = 7 * 24 * time.Hour
	DefaultSchedule  = "@every 1h"
)

// cronParser — стандартные 5 полей и дескрипторы (@hourly, @every 1h).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Pruner удаляет старые записи. Реализуется *repo.DeadLetterRepo.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger удаляет записи архива старше retention по расписанию.
type Purger struct {
	pruner    Pruner
	retention time.Duration
	schedule  cron.Schedule
	cron      *cron.Cron
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// PurgerConfig — конфигурация Purger.
type PurgerConfig struct {
	Pruner    Pruner
	Retention time.Duration // default: 7 дней
	Schedule  string        // cron-выражение (default: @every 1h)
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewPurger создаёт Purger. Возвращает ErrInvalidSchedule для
// неразбираемого расписания.
func NewPurger(cfg PurgerConfig) (*Purger, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schedule, err := cronParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, cfg.Schedule, err)
	}

	return &Purger{
		pruner:    cfg.Pruner,
		retention: cfg.Retention,
		schedule:  schedule,
		cron:      cron.New(),
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "purger"),
	}, nil
}

// Start запускает расписание. Не блокирует.
func (p *Purger) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.cron.Schedule(p.schedule, cron.FuncJob(p.tick))
	p.cron.Start()

	p.logger.Info("purger started",
		"retention", p.retention,
		"next_run", p.schedule.Next(p.now()),
	)
}

// Stop останавливает расписание и дожидается текущего запуска.
func (p *Purger) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	p.logger.Info("purger stopped")
}

func (p *Purger) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	if _, err := p.PurgeOnce(ctx); err != nil {
		p.logger.Error("purge failed", "error", err)
	}
}

// PurgeOnce удаляет записи с failed_at раньше now - retention.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention).UTC()

	deleted, err := p.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	telemetry.DeadLetters.WithLabelValues("purged").Add(float64(deleted))
	p.logger.Info("purged dead letters", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}
