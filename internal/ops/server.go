package ops

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/engine"
	"github.com/xela07ax/trapgate/internal/registry"
)

// Server — служебный HTTP-порт оператора: health, метрики, просмотр
// реестра и рубильник энфорсмента. Это не пользовательский интерфейс,
// порт не должен торчать наружу.
type Server struct {
	router   *chi.Mux
	logger   *zap.Logger
	registry *registry.Registry
	pause    *engine.PauseSwitch
}

func NewServer(logger *zap.Logger, reg *registry.Registry, pause *engine.PauseSwitch, promReg *prometheus.Registry) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.Named("ops"),
		registry: reg,
		pause:    pause,
	}
	s.routes(promReg)
	return s
}

func (s *Server) routes(promReg *prometheus.Registry) {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	// Реестр ловушек (read-only)
	r.Get("/v1/honeypots", s.listHoneypots)

	// Оперативная пауза энфорсмента: {"guild_id": "..."} или {"guild_id": "*"}
	r.Post("/v1/pause", s.setPause(true))
	r.Post("/v1/resume", s.setPause(false))
}

func (s *Server) listHoneypots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"channels": s.registry.List()}); err != nil {
		s.logger.Error("encoding error", zap.Error(err))
	}
}

func (s *Server) setPause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GuildID string `json:"guild_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GuildID == "" {
			http.Error(w, "guild_id is required ('*' for all)", http.StatusBadRequest)
			return
		}

		if err := s.pause.Set(r.Context(), body.GuildID, paused); err != nil {
			// Локальное состояние уже переключено, провалился только Redis
			s.logger.Error("pause state not propagated", zap.Error(err))
			http.Error(w, "applied locally, propagation failed", http.StatusBadGateway)
			return
		}

		s.logger.Warn("enforcement pause changed",
			zap.String("guild_id", body.GuildID), zap.Bool("paused", paused))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
