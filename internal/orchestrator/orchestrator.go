package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Publisher публикует задания в очередь канала. Реализуется *mq.Publisher.
type Publisher interface {
	PublishJob(ctx context.Context, job domain.DeliveryJob) error
}

// UserResolver возвращает контакт пользователя. Реализуется *upstream.UserClient.
type UserResolver interface {
	GetContact(ctx context.Context, userID string) (*domain.Contact, error)
}

// TemplateResolver возвращает шаблон по коду. Реализуется *upstream.TemplateClient.
type TemplateResolver interface {
	GetTemplate(ctx context.Context, code string) (*domain.Template, error)
}

// StatusRecorder сохраняет статус уведомления. Реализуется *status.Tracker.
type StatusRecorder interface {
	Save(ctx context.Context, rec domain.StatusRecord) error
}

// ChannelSet — каналы, в которые опубликованы задания.
type ChannelSet struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// Result — результат Dispatch.
type Result struct {
	NotificationID string     `json:"notification_id"`
	Channels       ChannelSet `json:"channels"`
}

// Orchestrator превращает запросы в задания доставки.
type Orchestrator struct {
	publisher Publisher
	users     UserResolver
	templates TemplateResolver
	status    StatusRecorder

	newID  func() string
	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	Publisher Publisher
	Users     UserResolver
	Templates TemplateResolver

	// Status — опционально: pending до публикации, failed при её ошибке.
	Status StatusRecorder

	// NewID генерирует request_id (default: UUID v4).
	NewID func() string

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		publisher: cfg.Publisher,
		users:     cfg.Users,
		templates: cfg.Templates,
		status:    cfg.Status,
		newID:     cfg.NewID,
		logger:    cfg.Logger,
	}
}

// Dispatch публикует по заданию на каждый выбранный и достижимый канал.
//
// Ошибки:
//   - ErrBadRequest: нет пользователя, нет каналов, не хватает переменных
//   - ErrValidation: задание не прошло валидацию
//   - ошибки upstream-клиентов возвращаются как есть
//   - ErrServiceUnavailable: брокер не принял задание
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (*Result, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = o.newID()
	}
	logger := telemetry.WithRequestID(o.logger, requestID)

	priority := domain.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	var (
		jobs []domain.DeliveryJob
		err  error
	)
	switch {
	case req.Direct != nil:
		jobs, err = o.directJobs(req)
	case req.Template != nil:
		jobs, err = o.templateJobs(ctx, logger, req)
	default:
		err = ErrNoContent
	}
	if err != nil {
		return nil, err
	}

	// Все задания валидируются до первой публикации
	for i := range jobs {
		jobs[i].RequestID = requestID
		jobs[i].Priority = priority
		jobs[i].Metadata = req.Metadata
		if err := jobs[i].Validate(); err != nil {
			return nil, err
		}
	}

	// pending пишется до публикации: отчёт воркера всегда позже
	for _, job := range jobs {
		o.recordStatus(ctx, logger, job, domain.StatusPending, "")
	}

	result := &Result{NotificationID: requestID}
	for i, job := range jobs {
		if err := o.publisher.PublishJob(ctx, job); err != nil {
			logger.Error("failed to publish job", "channel", job.Channel, "error", err)
			for _, rest := range jobs[i:] {
				o.recordStatus(ctx, logger, rest, domain.StatusFailed, "publish: "+err.Error())
			}
			return nil, fmt.Errorf("%w: publish %s job: %v", domain.ErrServiceUnavailable, job.Channel, err)
		}

		switch job.Channel {
		case domain.ChannelEmail:
			result.Channels.Email = true
		case domain.ChannelPush:
			result.Channels.Push = true
		}
	}

	logger.Info("notification dispatched",
		"email", result.Channels.Email,
		"push", result.Channels.Push,
	)
	return result, nil
}

// directJobs строит задание для запроса с явными адресатами.
func (o *Orchestrator) directJobs(req Request) ([]domain.DeliveryJob, error) {
	if req.Channel == "" {
		return nil, ErrChannelRequired
	}

	return []domain.DeliveryJob{{
		Channel:    req.Channel,
		Recipients: req.Direct.Recipients,
		Subject:    req.Direct.Subject,
		Body:       req.Direct.Body,
	}}, nil
}

// templateJobs определяет пользователя, рендерит шаблон и выбирает каналы.
func (o *Orchestrator) templateJobs(ctx context.Context, logger *slog.Logger, req Request) ([]domain.DeliveryJob, error) {
	userID := req.Identity.Resolve()
	if userID == "" {
		return nil, ErrNoUser
	}
	logger = logger.With("user_id", userID, "template_code", req.Template.Code)

	var (
		contact *domain.Contact
		tmpl    *domain.Template
	)

	// Контакт и шаблон запрашиваются параллельно
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := o.users.GetContact(gctx, userID)
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		contact = c
		return nil
	})
	g.Go(func() error {
		t, err := o.templates.GetTemplate(gctx, req.Template.Code)
		if err != nil {
			return fmt.Errorf("resolve template: %w", err)
		}
		tmpl = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// name берётся из профиля, переменные запроса его перекрывают
	vars := map[string]any{"name": contact.Name}
	maps.Copy(vars, req.Template.Variables)

	rendered, err := engine.Render(*tmpl, vars)
	if err != nil {
		return nil, err
	}
	if len(rendered.Unused) > 0 {
		logger.Warn("extra variables provided", "variables", strings.Join(rendered.Unused, ", "))
	}

	channels, err := selectChannels(logger, contact, req.Channel)
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.DeliveryJob, 0, len(channels))
	for _, ch := range channels {
		jobs = append(jobs, domain.DeliveryJob{
			Channel:    ch,
			Recipients: contact.Recipients(ch),
			Subject:    rendered.Subject,
			Body:       rendered.Body,
		})
	}
	return jobs, nil
}

// selectChannels выбирает каналы доставки.
//
// Явный канал важнее настроек, но недостижимый явный канал — ошибка.
// Без явного канала берутся все включённые в настройках; недостижимые
// пропускаются с предупреждением, если остался хотя бы один.
func selectChannels(logger *slog.Logger, contact *domain.Contact, explicit domain.Channel) ([]domain.Channel, error) {
	if explicit != "" {
		if len(contact.Recipients(explicit)) == 0 {
			return nil, badRequest(fmt.Sprintf("%s channel selected but user has no %s", explicit, recipientNoun(explicit)))
		}
		return []domain.Channel{explicit}, nil
	}

	var wanted, feasible []domain.Channel
	for _, ch := range domain.Channels() {
		if !contact.Wants(ch) {
			continue
		}
		wanted = append(wanted, ch)

		if len(contact.Recipients(ch)) == 0 {
			logger.Warn("skipping infeasible channel", "channel", ch, "reason", "no "+recipientNoun(ch))
			continue
		}
		feasible = append(feasible, ch)
	}

	if len(wanted) == 0 {
		return nil, ErrNoChannelSelected
	}
	if len(feasible) == 0 {
		return nil, ErrNoFeasibleChannel
	}
	return feasible, nil
}

func recipientNoun(ch domain.Channel) string {
	if ch == domain.ChannelPush {
		return "device tokens"
	}
	return "email address"
}

// recordStatus сохраняет статус канала. Ошибка записи не мешает ответу.
func (o *Orchestrator) recordStatus(ctx context.Context, logger *slog.Logger, job domain.DeliveryJob, st domain.DeliveryStatus, detail string) {
	if o.status == nil {
		return
	}

	err := o.status.Save(ctx, domain.StatusRecord{
		NotificationID: job.RequestID,
		Channel:        job.Channel,
		Status:         st,
		Timestamp:      time.Now().UTC(),
		Error:          detail,
	})
	if err != nil {
		logger.Warn("failed to record status", "channel", job.Channel, "status", st, "error", err)
	}
}
