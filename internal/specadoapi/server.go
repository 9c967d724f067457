// Package specadoapi is the composition root for the specadoctl demo server:
// it wires routing, logging, tracing, and metrics middleware around the
// library's Translate and HTTPClient entry points, the way the teacher's
// internal/app/server.go wires its own subsystems around chi.
package specadoapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	specado "github.com/specado/specado"
	"github.com/specado/specado/internal/circuitbreaker"
	"github.com/specado/specado/internal/httpclient"
	"github.com/specado/specado/internal/logging"
	"github.com/specado/specado/internal/obsmetrics"
	"github.com/specado/specado/internal/providers"
	"github.com/specado/specado/internal/ratelimit"
	"github.com/specado/specado/internal/tracing"
)

// Config controls the demo server's behavior. Zero value is a usable,
// all-defaults configuration.
type Config struct {
	ListenAddr  string
	LogLevel    string
	CORSOrigins []string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string
}

// DefaultConfig returns the server's baseline configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8090",
		LogLevel:        "info",
		OTelServiceName: "specadoctl",
	}
}

// Server hosts the /v1/translate and /v1/execute demo endpoints, plus
// /healthz and /metrics.
type Server struct {
	cfg Config
	r   *chi.Mux

	logger       *slog.Logger
	metrics      *obsmetrics.Registry
	rateLimiter  *ratelimit.Limiter
	breakers     *circuitbreaker.Registry
	otelShutdown func(context.Context) error

	httpServer *http.Server
}

// NewServer builds a Server. It registers no providers by itself — every
// request supplies its own ProviderSpec (inline or by path) and model id.
func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	otelShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}

	m := obsmetrics.New()
	rl := ratelimit.New(ratelimit.DefaultConfig())
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.OTelEnabled {
		r.Use(tracing.Middleware())
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{
		cfg:          cfg,
		r:            r,
		logger:       logger,
		metrics:      m,
		rateLimiter:  rl,
		breakers:     breakers,
		otelShutdown: otelShutdown,
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", m.Handler().ServeHTTP)
	r.Post("/v1/translate", s.handleTranslate)
	r.Post("/v1/execute", s.handleExecute)

	return s, nil
}

// Router returns the server's handler.
func (s *Server) Router() http.Handler { return s.r }

// SetHTTPServer registers the *http.Server so Close can drain in-flight
// requests before releasing other resources.
func (s *Server) SetHTTPServer(srv *http.Server) { s.httpServer = srv }

// Close drains in-flight requests and releases background resources.
func (s *Server) Close() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP drain error", slog.String("error", err.Error()))
		}
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otelShutdown(ctx); err != nil {
			s.logger.Warn("otel shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// translateRequest is the body /v1/translate and /v1/execute both accept.
// ProviderSpec is inline JSON; ProviderSpecPath, if set instead, is loaded
// from disk via internal/providerspec ($ref + env interpolation supported).
type translateRequest struct {
	PromptSpec       specado.PromptSpec   `json:"prompt_spec"`
	ProviderSpec     *specado.ProviderSpec `json:"provider_spec,omitempty"`
	ProviderSpecPath string               `json:"provider_spec_path,omitempty"`
	ModelID          string               `json:"model_id"`
}

func (s *Server) resolveProvider(req translateRequest) (*specado.ProviderSpec, error) {
	if req.ProviderSpec != nil {
		return req.ProviderSpec, nil
	}
	if req.ProviderSpecPath != "" {
		spec, diags, err := specado.LoadProviderSpec(req.ProviderSpecPath)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			s.logger.Warn("provider spec diagnostic", slog.String("path", d.Path), slog.String("message", d.Message))
		}
		return spec, nil
	}
	return nil, errors.New("specadoctl: request must set either provider_spec or provider_spec_path")
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	provider, err := s.resolveProvider(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := specado.Translate(&req.PromptSpec, provider, req.ModelID)
	s.recordTranslation(provider.Name, req.ModelID, err, result)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	provider, err := s.resolveProvider(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := specado.Translate(&req.PromptSpec, provider, req.ModelID)
	s.recordTranslation(provider.Name, req.ModelID, err, result)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	model, ok := provider.ResolveModel(req.ModelID)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("specadoctl: model %q not found in provider spec", req.ModelID))
		return
	}

	client, err := specado.NewHTTPClient(provider, s.rateLimiter, s.breakers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	body, ok := result.ProviderRequestJSON.(map[string]any)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("specadoctl: translated request body was not a JSON object"))
		return
	}

	ctx := providers.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	start := time.Now()
	resp, err := client.ExecuteChatCompletion(ctx, model, body)
	latencyMs := float64(time.Since(start).Milliseconds())
	classification := ""
	if err != nil {
		var classified *httpclient.ClassifiedError
		if errors.As(err, &classified) {
			classification = string(classified.Classification)
		}
	}
	s.metrics.ObserveHTTPRequest(provider.Name, model.Endpoints.ChatCompletion.Path, classification, latencyMs)

	if err != nil {
		diag := client.Diagnose(err, model, middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusBadGateway, diag)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"translation": result,
		"response":    resp,
	})
}

func (s *Server) recordTranslation(provider, model string, err error, result *specado.TranslationResult) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveTranslation(provider, model, outcome)
	if result != nil {
		for _, item := range result.Lossiness.Items {
			s.metrics.ObserveLossiness(item.Code, item.Severity)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
