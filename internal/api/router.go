package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
// Reads and the WebSocket are open on the LAN; anything that changes the
// accessory or exposes its controllers needs a controller token.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID)
	r.Use(s.accessLog)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleSystemMetrics)

		r.Get("/accessory", s.handleGetAccessory)
		r.With(s.unlessUnpaired(s.requireController)).Post("/identify", s.handleIdentify)

		r.Route("/characteristics", func(r chi.Router) {
			r.Get("/", s.handleListCharacteristics)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCharacteristic)
				r.With(s.requireController).Put("/", s.handleWriteCharacteristic)
				r.Get("/history", s.handleCharacteristicHistory)
			})
		})

		r.Route("/pairings", func(r chi.Router) {
			r.With(s.requireController).Get("/", s.handleListPairings)
			r.With(s.unlessUnpaired(s.requireAdmin)).Post("/", s.handleCreatePairing)
			r.With(s.requireController).Delete("/{controllerID}", s.handleDeletePairing)
		})

		r.With(s.requireAdmin).Get("/audit", s.handleListAudit)
	})

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/api/v1/ws"
	}
	return s.wsCfg.Path
}
