package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// ListDeadLetters возвращает последние dead letters.
// GET /api/v1/dead-letters?channel=...&limit=...
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		ServiceUnavailable(w, "dead-letter archive is disabled")
		return
	}

	channel, err := domain.ParseChannel(r.URL.Query().Get("channel"))
	if HandleError(w, h.log(r), err) {
		return
	}

	letters, err := h.deadLetters.List(r.Context(), repo.DeadLetterFilter{
		Channel: channel,
		Limit:   parseLimit(r.URL.Query().Get("limit"), repo.DefaultListLimit),
	})
	if HandleError(w, h.log(r), err) {
		return
	}
	if letters == nil {
		letters = []domain.DeadLetter{}
	}

	List(w, letters, len(letters))
}

// ReplayDeadLetter переотправляет dead letter в очередь его канала.
// POST /api/v1/dead-letters/{id}/replay
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.replayer == nil {
		ServiceUnavailable(w, "dead-letter archive is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid dead letter id")
		return
	}

	dl, err := h.replayer.Replay(r.Context(), id)
	if HandleError(w, h.log(r), err) {
		return
	}

	subject, _ := SubjectFrom(r.Context())
	h.log(r).Info("dead letter replay requested", "dead_letter_id", id, "by", subject)
	Accepted(w, dl)
}
