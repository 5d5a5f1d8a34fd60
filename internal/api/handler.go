package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/health"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Dispatcher публикует уведомления. Реализуется *orchestrator.Orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// StatusStore хранит статусы доставки. Реализуется *status.Tracker.
type StatusStore interface {
	Save(ctx context.Context, rec domain.StatusRecord) error
	Get(ctx context.Context, notificationID string, channel domain.Channel) (*domain.StatusRecord, error)
	GetAll(ctx context.Context, notificationID string) (map[domain.Channel]*domain.StatusRecord, error)
}

// DeadLetterLister читает архив. Реализуется *repo.DeadLetterRepo.
type DeadLetterLister interface {
	List(ctx context.Context, filter repo.DeadLetterFilter) ([]domain.DeadLetter, error)
}

// DeadLetterReplayer переотправляет архивные задания. Реализуется *deadletter.Replayer.
type DeadLetterReplayer interface {
	Replay(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error)
}

// HealthChecker опрашивает зависимости. Реализуется *health.Checker.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dispatcher   Dispatcher
	statuses     StatusStore
	deadLetters  DeadLetterLister
	replayer     DeadLetterReplayer
	health       HealthChecker
	auth         *Authenticator
	statusSecret string
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Dispatcher Dispatcher
	Statuses   StatusStore

	// DeadLetters и Replayer опциональны: без них /dead-letters отвечает 503.
	DeadLetters DeadLetterLister
	Replayer    DeadLetterReplayer

	Health       HealthChecker
	Auth         *Authenticator
	StatusSecret string
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auth == nil {
		cfg.Auth = NewAuthenticator("", cfg.Logger)
	}

	return &Handler{
		dispatcher:   cfg.Dispatcher,
		statuses:     cfg.Statuses,
		deadLetters:  cfg.DeadLetters,
		replayer:     cfg.Replayer,
		health:       cfg.Health,
		auth:         cfg.Auth,
		statusSecret: cfg.StatusSecret,
		logger:       cfg.Logger,
	}
}

// log возвращает логгер запроса с trace_id, если он есть.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContextOr(r.Context(), h.logger)
}

// maxBodyBytes — ограничение тела запроса.
const maxBodyBytes = 1 << 20

// healthTimeout — общий таймаут GET /health.
const healthTimeout = 10 * time.Second
