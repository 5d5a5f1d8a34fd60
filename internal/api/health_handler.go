package api

import (
	"context"
	"net/http"
)

// Health возвращает состояние зависимостей. Всегда 200: endpoint
// сообщает о состоянии, а не управляет трафиком.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	JSON(w, http.StatusOK, h.health.Check(ctx))
}
