package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/domain"
)

// DefaultTTL — время жизни записи о статусе.
const DefaultTTL = 48 * time.Hour

// Tracker хранит последний статус доставки по (notification_id, channel).
type Tracker struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker создаёт Tracker. ttl <= 0 означает DefaultTTL.
func NewTracker(store cache.Store, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{store: store, ttl: ttl, now: time.Now}
}

// Key возвращает ключ записи: notif_status:{channel}:{id}.
func Key(channel domain.Channel, notificationID string) string {
	return fmt.Sprintf("notif_status:%s:%s", channel, notificationID)
}

// Save записывает статус. Последняя запись побеждает.
// Пустой Timestamp заменяется текущим временем.
func (t *Tracker) Save(ctx context.Context, rec domain.StatusRecord) error {
	if strings.TrimSpace(rec.NotificationID) == "" {
		return domain.NewValidationError("notification_id", "must be present")
	}
	if !rec.Channel.Valid() {
		return domain.NewValidationError("channel", fmt.Sprintf("unknown channel %q", rec.Channel))
	}
	if !rec.Status.Valid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", rec.Status))
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now().UTC()
	}

	if err := t.store.Set(ctx, Key(rec.Channel, rec.NotificationID), rec, t.ttl); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// Get возвращает статус по каналу или domain.ErrNotFound.
func (t *Tracker) Get(ctx context.Context, notificationID string, channel domain.Channel) (*domain.StatusRecord, error) {
	var rec domain.StatusRecord
	found, err := t.store.Get(ctx, Key(channel, notificationID), &rec)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("status %s/%s: %w", channel, notificationID, domain.ErrNotFound)
	}
	return &rec, nil
}

// GetAll возвращает статусы по всем каналам. Каналы без записи
// отсутствуют в результате; пустой результат — domain.ErrNotFound.
func (t *Tracker) GetAll(ctx context.Context, notificationID string) (map[domain.Channel]*domain.StatusRecord, error) {
	out := make(map[domain.Channel]*domain.StatusRecord, 2)
	for _, ch := range domain.Channels() {
		rec, err := t.Get(ctx, notificationID, ch)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[ch] = rec
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("status %s: %w", notificationID, domain.ErrNotFound)
	}
	return out, nil
}
