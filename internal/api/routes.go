package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Trace(h.logger),
		Logging(h.logger),
	)

	// Notifications
	mux.Handle("POST /api/v1/notifications", chain(h.auth.OptionalAuth(http.HandlerFunc(h.CreateNotification))))
	mux.Handle("GET /api/v1/notifications/status/{id}", chain(http.HandlerFunc(h.GetStatus)))

	// Status callback от воркеров
	mux.Handle("POST /api/v1/notifications/{channel}/status",
		chain(RequireStatusSecret(h.statusSecret)(http.HandlerFunc(h.ReportStatus))))

	// Dead letters
	mux.Handle("GET /api/v1/dead-letters", chain(h.auth.RequireAuth(http.HandlerFunc(h.ListDeadLetters))))
	mux.Handle("POST /api/v1/dead-letters/{id}/replay", chain(h.auth.RequireAuth(http.HandlerFunc(h.ReplayDeadLetter))))

	// Health
	if h.health != nil {
		mux.Handle("GET /health", chain(http.HandlerFunc(h.Health)))
	}
}
