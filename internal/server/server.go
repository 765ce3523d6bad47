package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meetline/meetline/internal/appstats"
	"github.com/meetline/meetline/internal/assistant"
	"github.com/meetline/meetline/internal/config"
	"github.com/meetline/meetline/internal/provider"
	"github.com/meetline/meetline/internal/pubsub"
	"github.com/meetline/meetline/internal/store"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP gateway: room management, meeting-setup assistance,
// recording ingest and the provider webhook.
type Server struct {
	cfg       *config.Config
	provider  *provider.Client
	assistant *assistant.Client
	store     store.Store
	pubsub    pubsub.PubSub
}

func NewServer(cfg *config.Config, pc *provider.Client, ac *assistant.Client,
	st store.Store, ps pubsub.PubSub) *Server {
	return &Server{
		cfg:       cfg,
		provider:  pc,
		assistant: ac,
		store:     st,
		pubsub:    ps,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(observe)

	r.Route("/api", func(r chi.Router) {
		r.Post("/rooms", s.createRoom)
		r.Get("/rooms/{name}", s.getRoom)
		r.Post("/process-description", s.processDescription)
		r.Post("/upload-recording", s.uploadRecording)
		r.Post("/save-recording-metadata", s.saveRecordingMetadata)
		r.Get("/recordings", s.listRecordings)
		r.Get("/recordings/{meetingID}", s.getRecording)
		r.Post("/webhooks/recording", s.recordingWebhook)
		r.Get("/health", s.health)
	})

	return r
}

// ListenAndServe blocks serving the API until ctx is cancelled, then shuts
// down draining in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// observe records per-route request counters and latency.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		appstats.ObserveRequest(route, time.Since(start))
	})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Errorf("failed to encode response: %s", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
