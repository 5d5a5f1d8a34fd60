package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/status"
)

// CreateNotification принимает уведомление и публикует задания.
// POST /api/v1/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var payload orchestrator.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	subject, _ := SubjectFrom(r.Context())

	req, err := orchestrator.NormalizeRequest(payload, subject)
	if HandleError(w, h.log(r), err) {
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req)
	if HandleError(w, h.log(r), err) {
		return
	}

	Accepted(w, result)
}

// ReportStatus записывает статус доставки от воркера.
// POST /api/v1/notifications/{channel}/status
func (h *Handler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	channel, err := domain.ParseChannel(r.PathValue("channel"))
	if err != nil || channel == "" {
		BadRequest(w, "invalid channel")
		return
	}

	var payload status.CallbackPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	rec := domain.StatusRecord{
		NotificationID: payload.NotificationID,
		Channel:        channel,
		Status:         payload.Status,
		Timestamp:      payload.Timestamp,
		Error:          payload.Error,
	}
	if HandleError(w, h.log(r), h.statuses.Save(r.Context(), rec)) {
		return
	}

	h.log(r).Debug("status recorded",
		"notification_id", rec.NotificationID,
		"channel", channel,
		"status", rec.Status,
	)
	Success(w, map[string]bool{"success": true})
}

// GetStatus возвращает статусы уведомления.
// GET /api/v1/notifications/status/{id}?channel=email|push
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	channel, err := domain.ParseChannel(r.URL.Query().Get("channel"))
	if HandleError(w, h.log(r), err) {
		return
	}

	if channel != "" {
		rec, err := h.statuses.Get(r.Context(), id, channel)
		if HandleError(w, h.log(r), err) {
			return
		}
		Success(w, StatusResponse{channel: rec})
		return
	}

	records, err := h.statuses.GetAll(r.Context(), id)
	if HandleError(w, h.log(r), err) {
		return
	}
	Success(w, StatusFromRecords(records))
}
