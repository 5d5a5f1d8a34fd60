package breaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// State — состояние breaker для одного сервиса.
//
//	CLOSED ──(threshold failures)──→ OPEN ──(reset timeout)──→ HALF_OPEN
//	   ↑                               ↑                           │
//	   └────────── success ────────────┼───────────────────────────┤
//	                                   └──────── failure ──────────┘
type State string

const (
	// StateClosed — вызовы разрешены.
	StateClosed State = "CLOSED"

	// StateOpen — вызовы запрещены до RetryAfter.
	StateOpen State = "OPEN"

	// StateHalfOpen — разрешён ровно один пробный вызов.
	StateHalfOpen State = "HALF_OPEN"
)

func (s State) gauge() float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Snapshot — копия состояния breaker для сервиса.
type Snapshot struct {
	Service      string    `json:"service"`
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
	RetryAfter   time.Time `json:"retry_after,omitempty"`
}

// Config — конфигурация Registry.
type Config struct {
	// FailureThreshold — число неудач подряд до перехода в OPEN.
	FailureThreshold int

	// ResetTimeout — время в OPEN до пробного вызова.
	ResetTimeout time.Duration

	// Now — источник времени (для тестов).
	Now func() time.Time

	Logger *slog.Logger
}

type circuit struct {
	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	retryAfter   time.Time
	trialGranted time.Time
}

// Registry — набор breaker-ов, по одному на имя сервиса.
//
// Состояние живёт в памяти процесса и сбрасывается при рестарте.
// Registry передаётся компонентам явно; глобального экземпляра нет.
type Registry struct {
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	circuits map[string]*circuit
}

// New создаёт Registry.
func New(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Registry{
		threshold:    cfg.FailureThreshold,
		resetTimeout: cfg.ResetTimeout,
		now:          cfg.Now,
		logger:       cfg.Logger,
		circuits:     make(map[string]*circuit),
	}
}

func (r *Registry) get(service string) *circuit {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[service]
	if !ok {
		c = &circuit{state: StateClosed}
		r.circuits[service] = c
	}
	return c
}

// CanExecute сообщает, можно ли сейчас вызвать сервис.
//
// В OPEN возвращает false до истечения ResetTimeout, затем переводит
// breaker в HALF_OPEN и разрешает ровно один пробный вызов. Пока
// результат пробного вызова не записан, остальные получают false.
// Если результат так и не пришёл за ResetTimeout, выдаётся новая проба.
func (r *Registry) CanExecute(service string) bool {
	c := r.get(service)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := r.now()

	switch c.state {
	case StateOpen:
		if now.Before(c.retryAfter) {
			return false
		}
		r.transition(service, c, StateHalfOpen)
		c.trialGranted = now
		return true

	case StateHalfOpen:
		if now.Sub(c.trialGranted) >= r.resetTimeout {
			c.trialGranted = now
			return true
		}
		return false

	default:
		return true
	}
}

// OnSuccess сбрасывает счётчик неудач и закрывает breaker из любого состояния.
func (r *Registry) OnSuccess(service string) {
	c := r.get(service)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = 0
	c.openedAt = time.Time{}
	c.retryAfter = time.Time{}
	c.trialGranted = time.Time{}
	if c.state != StateClosed {
		r.transition(service, c, StateClosed)
	}
}

// Release возвращает невыполненную пробу HALF_OPEN: следующий
// CanExecute выдаст её сразу. Вызывается, когда пробный вызов прерван
// вызывающей стороной и ничего не сказал о здоровье сервиса.
// В других состояниях ничего не делает.
func (r *Registry) Release(service string) {
	c := r.get(service)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalfOpen {
		c.trialGranted = time.Time{}
	}
}

// OnFailure учитывает неудачный вызов.
//
// Достижение порога открывает breaker. Неудача в HALF_OPEN открывает
// его снова с новым RetryAfter.
func (r *Registry) OnFailure(service string) {
	c := r.get(service)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := r.now()
	c.failures++

	if c.state == StateHalfOpen || c.failures >= r.threshold {
		c.openedAt = now
		c.retryAfter = now.Add(r.resetTimeout)
		c.trialGranted = time.Time{}
		if c.state != StateOpen {
			r.transition(service, c, StateOpen)
		}
	}
}

// State возвращает снимок состояния сервиса. Неизвестный сервис — CLOSED.
func (r *Registry) State(service string) Snapshot {
	c := r.get(service)
	c.mu.Lock()
	defer c.mu.Unlock()

	return snapshot(service, c)
}

// Snapshot возвращает состояния всех известных сервисов, отсортированные по имени.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	names := make([]string, 0, len(r.circuits))
	for name := range r.circuits {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)

	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		out = append(out, r.State(name))
	}
	return out
}

func snapshot(service string, c *circuit) Snapshot {
	return Snapshot{
		Service:      service,
		State:        c.state,
		FailureCount: c.failures,
		OpenedAt:     c.openedAt,
		RetryAfter:   c.retryAfter,
	}
}

// transition вызывается под c.mu.
func (r *Registry) transition(service string, c *circuit, to State) {
	from := c.state
	c.state = to
	telemetry.BreakerState.WithLabelValues(service).Set(to.gauge())

	logger := telemetry.WithService(r.logger, service)
	if to == StateOpen {
		logger.Warn("circuit breaker opened",
			"from", from,
			"failures", c.failures,
			"retry_after", c.retryAfter,
		)
		return
	}
	logger.Info("circuit breaker state changed", "from", from, "to", to)
}
