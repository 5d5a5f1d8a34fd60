// Package health опрашивает зависимости relay-api параллельно
// с ограничением конкурентности.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Статусы зависимости.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Default configuration values.
const (
	defaultConcurrency = 4
	defaultTimeout     = 5 * time.Second
)

// Probe проверяет одну зависимость. nil — зависимость здорова.
type Probe func(ctx context.Context) error

// Result — состояние одной зависимости.
type Result struct {
	Status string `json:"status"`
}

// Report — состояние всех зависимостей по имени.
type Report map[string]Result

// Healthy возвращает true, если все зависимости здоровы.
func (r Report) Healthy() bool {
	for _, res := range r {
		if res.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Checker выполняет probes.
type Checker struct {
	probes      map[string]Probe
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// Config — конфигурация Checker.
type Config struct {
	Probes      map[string]Probe
	Concurrency int           // одновременных probes (default: 4)
	Timeout     time.Duration // таймаут одной probe (default: 5s)
	Logger      *slog.Logger
}

// New создаёт новый Checker.
func New(cfg Config) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Checker{
		probes:      cfg.Probes,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Names возвращает отсортированные имена probes.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check запускает все probes. Ошибка или паника одной probe
// не влияет на остальные.
func (c *Checker) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		report = make(Report, len(c.probes))
	)

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for _, name := range c.Names() {
		probe := c.probes[name]
		g.Go(func() error {
			status := StatusHealthy
			if err := c.run(ctx, probe); err != nil {
				c.logger.Warn("health probe failed", "dependency", name, "error", err)
				status = StatusUnhealthy
			}

			mu.Lock()
			report[name] = Result{Status: status}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func (c *Checker) run(ctx context.Context, probe Probe) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return probe(ctx)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("probe panicked: %v", e.value)
}
