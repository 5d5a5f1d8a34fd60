package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/domain"
)

// Имена сервисов для breaker и метрик.
const (
	ServiceUser     = "user-service"
	ServiceTemplate = "template-service"
)

// DefaultCacheTTL — время жизни закэшированных ответов.
const DefaultCacheTTL = 15 * time.Minute

// envelope — стандартная обёртка ответа сервисов: {"success", "data", "message"}.
type envelope[T any] struct {
	Data T `json:"data"`
}

// UserClient получает контакты и настройки пользователя.
type UserClient struct {
	client *Client
	store  cache.Store
	ttl    time.Duration
}

// NewUserClient создаёт UserClient. store может быть nil — тогда без кэша.
func NewUserClient(client *Client, store cache.Store, ttl time.Duration) *UserClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &UserClient{client: client, store: store, ttl: ttl}
}

// GetContact возвращает контакт пользователя (кэш user-contact:{id}).
func (u *UserClient) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	load := func(ctx context.Context) (domain.Contact, error) {
		var resp envelope[domain.Contact]
		if err := u.client.GetJSON(ctx, "/users/"+url.PathEscape(userID), &resp); err != nil {
			return domain.Contact{}, err
		}
		if resp.Data.UserID == "" {
			resp.Data.UserID = userID
		}
		return resp.Data, nil
	}

	if u.store == nil {
		contact, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &contact, nil
	}

	contact, err := cache.Lookup(ctx, u.store, "user-contact:"+userID, u.ttl, load)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// Health проверяет user-service.
func (u *UserClient) Health(ctx context.Context) error {
	return u.client.Health(ctx)
}

// TemplateClient получает последнюю версию шаблона по коду.
type TemplateClient struct {
	client *Client
	store  cache.Store
	ttl    time.Duration
}

// NewTemplateClient создаёт TemplateClient. store может быть nil.
func NewTemplateClient(client *Client, store cache.Store, ttl time.Duration) *TemplateClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TemplateClient{client: client, store: store, ttl: ttl}
}

// GetTemplate возвращает шаблон (кэш template:{code}).
func (t *TemplateClient) GetTemplate(ctx context.Context, code string) (*domain.Template, error) {
	load := func(ctx context.Context) (domain.Template, error) {
		var resp envelope[domain.Template]
		path := "/templates?template_code=" + url.QueryEscape(code)
		if err := t.client.GetJSON(ctx, path, &resp); err != nil {
			return domain.Template{}, err
		}
		if resp.Data.Subject == "" && resp.Data.Body == "" {
			return domain.Template{}, &domain.UpstreamError{
				Service:    t.client.Service(),
				StatusCode: 404,
				Body:       fmt.Sprintf("template %q has no content", code),
				Err:        domain.ErrNotFound,
			}
		}
		return resp.Data, nil
	}

	if t.store == nil {
		tmpl, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &tmpl, nil
	}

	tmpl, err := cache.Lookup(ctx, t.store, "template:"+code, t.ttl, load)
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Health проверяет template-service.
func (t *TemplateClient) Health(ctx context.Context) error {
	return t.client.Health(ctx)
}
