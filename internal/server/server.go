// Package server exposes the estimator over HTTP: the city catalog, the
// assumptions registry, a caching yield proxy and the estimate endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/iwvelando/solar-estimator/internal/cities"
	"github.com/iwvelando/solar-estimator/internal/estimator"
	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/internal/pvgis"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/validation"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

// Options wires the handler to its collaborators. Provider is required.
type Options struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Assumptions    assumptions.Set
	Provider       *pvgis.CachedProvider
	MaxBodySize    int64
	AllowedOrigins []string
	Version        string
}

type handler struct {
	logger      *zap.Logger
	assumptions assumptions.Set
	provider    *pvgis.CachedProvider
	estimator   *estimator.Estimator
	validator   *validation.Validator
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler that serves the estimator API.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBodySize := opts.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	h := &handler{
		logger:      logger,
		assumptions: opts.Assumptions,
		provider:    opts.Provider,
		estimator:   estimator.New(opts.Assumptions, opts.Provider, logger, opts.Metrics),
		validator:   validation.NewValidator(),
		maxBodySize: maxBodySize,
		version:     version,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		requestLogger(logger, "http"),
		opts.Metrics.HTTPMiddleware,
		middleware.Recoverer,
	)
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"X-Cache"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", h.handleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Get("/cities", h.handleCities)
		r.Get("/cities/{id}", h.handleCity)
		r.Get("/assumptions", h.handleAssumptions)
		r.Get("/pvgis", h.handlePVGIS)
		r.Post("/estimate", h.handleEstimate)
		r.Post("/evaluate", h.handleEvaluate)
		r.Post("/recalculate", h.handleRecalculate)
	})
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	return router
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"version":            h.version,
		"assumptionsVersion": h.assumptions.Version,
	})
}

func (h *handler) handleCities(w http.ResponseWriter, r *http.Request) {
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	if region == "" {
		h.writeJSON(w, r, http.StatusOK, map[string]any{"cities": cities.All()})
		return
	}

	for name, list := range cities.ByRegion() {
		if strings.EqualFold(name, region) {
			h.writeJSON(w, r, http.StatusOK, map[string]any{"region": name, "cities": list})
			return
		}
	}
	h.respondError(w, r, http.StatusBadRequest,
		fmt.Sprintf("unknown region %q (expected one of %s)", region, strings.Join(cities.Regions(), ", ")),
		"server.handleCities")
}

func (h *handler) handleCity(w http.ResponseWriter, r *http.Request) {
	city, err := cities.FindByID(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, err.Error(), "server.handleCity")
		return
	}
	h.writeJSON(w, r, http.StatusOK, city)
}

func (h *handler) handleAssumptions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"version":     h.assumptions.Version,
		"assumptions": h.assumptions,
		"entries":     h.assumptions.Entries(),
	})
}

func (h *handler) handlePVGIS(w http.ResponseWriter, r *http.Request) {
	q, err := pvgis.ParseQuery(r.URL.Query(), h.assumptions.PVGIS.DefaultAngleDeg)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), "server.handlePVGIS")
		return
	}

	resp, hit, err := h.provider.Lookup(r.Context(), q)
	if err != nil {
		h.respondUpstreamError(w, r, err, "server.handlePVGIS")
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Raw()); err != nil {
		h.logger.Error("failed to write yield response",
			zap.String("op", "server.handlePVGIS"),
			zap.Error(err),
		)
	}
}

func (h *handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := estimator.DefaultRequest(h.assumptions)
	if !h.decodeBody(w, r, &req, "server.handleEstimate") {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), "server.handleEstimate")
		return
	}

	res, err := h.estimator.Run(r.Context(), req)
	if err != nil {
		h.respondUpstreamError(w, r, err, "server.handleEstimate")
		return
	}

	h.logger.Debug("estimate served",
		zap.String("op", "server.handleEstimate"),
		zap.String("id", res.ID),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, r, http.StatusOK, res)
}

type evaluateRequest struct {
	estimator.Request
	ProductionKwh       [constants.MonthsPerYear]float64 `json:"productionKwh" validate:"dive,finite,gte=0"`
	AnnualProductionKwh float64                          `json:"annualProductionKwh" validate:"finite,gte=0"`
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body := evaluateRequest{Request: estimator.DefaultRequest(h.assumptions)}
	if !h.decodeBody(w, r, &body, "server.handleEvaluate") {
		return
	}
	if err := h.validator.Struct(body); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), "server.handleEvaluate")
		return
	}

	annual := body.AnnualProductionKwh
	if annual <= 0 {
		annual = mathutil.Sum12(body.ProductionKwh)
	}

	res, err := h.estimator.Evaluate(body.Request, body.ProductionKwh, annual)
	if err != nil {
		h.respondUpstreamError(w, r, err, "server.handleEvaluate")
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

type recalculateRequest struct {
	Result      *estimator.Result     `json:"result"`
	Sensitivity estimator.Sensitivity `json:"sensitivity"`
}

func (h *handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var body recalculateRequest
	if !h.decodeBody(w, r, &body, "server.handleRecalculate") {
		return
	}
	if body.Result == nil {
		h.respondError(w, r, http.StatusBadRequest, "missing previous result", "server.handleRecalculate")
		return
	}
	if err := h.validator.Struct(body.Result.Request); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), "server.handleRecalculate")
		return
	}
	if err := h.validator.Struct(body.Sensitivity); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), "server.handleRecalculate")
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.estimator.Recalculate(body.Result, body.Sensitivity))
}

// decodeBody reads a JSON body of at most maxBodySize bytes into v and
// writes the error response itself when that fails.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, v any, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

// statusFor maps estimator and provider errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pvgis.ErrInvalidQuery),
		errors.Is(err, estimator.ErrNoLocation),
		errors.Is(err, cities.ErrUnknownCity):
		return http.StatusBadRequest
	case errors.Is(err, estimator.ErrSystemTooSmall):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pvgis.ErrUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pvgis.ErrUpstream), errors.Is(err, pvgis.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)

	var upstream *pvgis.UpstreamError
	if errors.As(err, &upstream) {
		h.logger.Error("yield provider returned an error",
			zap.String("op", op),
			zap.Int("upstreamStatus", upstream.StatusCode),
			zap.Error(err),
		)
		h.writeJSON(w, r, status, map[string]any{
			"error":          err.Error(),
			"upstreamStatus": upstream.StatusCode,
			"upstreamBody":   upstream.Body,
		})
		return
	}

	h.respondError(w, r, status, err.Error(), op)
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// Server runs the handler until its context is cancelled.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// New returns a Server for handler listening on listener.
func New(listener net.Listener, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		listener: listener,
		logger:   logger,
	}
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.httpServer.SetKeepAlivesEnabled(false)
		if err := s.httpServer.Shutdown(ctxTimeout); err != nil {
			s.logger.Warn("server shutdown incomplete",
				zap.String("op", "server.Run"),
				zap.Error(err),
			)
		}
	}()

	s.logger.Info("serving HTTP API",
		zap.String("op", "server.Run"),
		zap.String("address", s.listener.Addr().String()),
	)
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
