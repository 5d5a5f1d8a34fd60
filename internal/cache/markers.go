package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// DefaultMarkerTTL — время жизни маркера обработки.
const DefaultMarkerTTL = 24 * time.Hour

// Markers — маркеры идемпотентности воркера.
//
// Ключ: processed:{channel}:{request_id}. request_id общий для всех
// каналов уведомления, поэтому канал входит в ключ.
type Markers struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewMarkers создаёт Markers. ttl <= 0 означает DefaultMarkerTTL.
func NewMarkers(store Store, ttl time.Duration) *Markers {
	if ttl <= 0 {
		ttl = DefaultMarkerTTL
	}
	return &Markers{store: store, ttl: ttl, now: time.Now}
}

// MarkerKey возвращает ключ маркера.
func MarkerKey(channel domain.Channel, requestID string) string {
	return fmt.Sprintf("processed:%s:%s", channel, requestID)
}

// IsProcessed сообщает, есть ли маркер для задания.
func (m *Markers) IsProcessed(ctx context.Context, channel domain.Channel, requestID string) (bool, error) {
	_, found, err := m.Get(ctx, channel, requestID)
	return found, err
}

// Get возвращает маркер, если он есть.
func (m *Markers) Get(ctx context.Context, channel domain.Channel, requestID string) (*domain.ProcessedMarker, bool, error) {
	var marker domain.ProcessedMarker
	found, err := m.store.Get(ctx, MarkerKey(channel, requestID), &marker)
	if err != nil || !found {
		return nil, false, err
	}
	return &marker, true, nil
}

// MarkProcessed записывает маркер с TTL.
func (m *Markers) MarkProcessed(ctx context.Context, channel domain.Channel, requestID string, status domain.DeliveryStatus, detail string) error {
	marker := domain.ProcessedMarker{
		RequestID:   requestID,
		Channel:     channel,
		Status:      status,
		Detail:      detail,
		ProcessedAt: m.now().UTC(),
	}
	return m.store.Set(ctx, MarkerKey(channel, requestID), marker, m.ttl)
}
