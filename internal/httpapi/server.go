package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
)

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Stations   *service.StationManager
	Identities *service.IdentityService
	Reports    *service.ReportService
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	router     *chi.Mux
	stations   *service.StationManager
	identities *service.IdentityService
	reports    *service.ReportService
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	r := chi.NewRouter()

	s := &Server{
		logger:     d.Logger,
		router:     r,
		stations:   d.Stations,
		identities: d.Identities,
		reports:    d.Reports,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", s.handleListStations)
			r.Post("/{station_id}/start", s.handleStartStation)
			r.Post("/{station_id}/stop", s.handleStopStation)
			r.Post("/{station_id}/signals", s.handleSignal)
			r.Get("/{station_id}/events", s.handleStationEvents)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Get("/", s.handleListIdentities)
			r.Post("/", s.handleCreateIdentity)
			r.Get("/{identity_id}", s.handleGetIdentity)
			r.Put("/{identity_id}", s.handleUpdateIdentity)
			r.Delete("/{identity_id}", s.handleDeleteIdentity)
			r.Put("/{identity_id}/descriptor", s.handleSetDescriptor)
			r.Get("/{identity_id}/qr.png", s.handleIdentityQR)
		})

		r.Get("/sessions", s.handleListSessions)
		r.Get("/stats/daily", s.handleDailyStats)
		r.Get("/reports/monthly", s.handleMonthlyReport)

		r.Get("/export/sessions.csv", s.handleExportSessions)
		r.Get("/export/identities.csv", s.handleExportIdentities)
		r.Get("/export/monthly.csv", s.handleExportMonthly)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sts, err := s.stations.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scanning := 0
	for _, st := range sts {
		if st.Scanning {
			scanning++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"scanning":    scanning,
		"server_time": formatTime(time.Now()),
	})
}
