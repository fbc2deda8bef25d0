package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/liamcoop/noshow/internal/config"
	"github.com/liamcoop/noshow/internal/logger"
	"github.com/liamcoop/noshow/risk"
	"github.com/liamcoop/noshow/rules"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
	cacheMemory   = "memory"
	cacheRedis    = "redis"
)

type Server struct {
	cfg       *config.Config
	db        *sql.DB
	rdb       *redis.Client
	scorer    *risk.Scorer
	storeKind string
	cacheKind string
	router    *chi.Mux
}

// NewServer connects the optional Postgres and Redis backends named in cfg
// and builds the server over them. An unreachable Redis falls back to the
// in-process cache; an unreachable Postgres is an error.
func NewServer(cfg *config.Config) (*Server, error) {
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = openDatabase(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = openRedis(cfg.RedisURL)
		if err != nil {
			logger.WarnCacheFallback()
			logger.Logger.Warn("redis unavailable, using in-process rules cache", "error", err)
			rdb = nil
		}
	}

	s, err := NewServerWithDB(db, rdb, cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewServerWithDB builds the server over already opened backends. A nil db
// serves the standard rule table from memory. Redis is only used to share
// the rules cache between instances reading the same Postgres rule set.
func NewServerWithDB(db *sql.DB, rdb *redis.Client, cfg *config.Config) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		db:        db,
		storeKind: storeMemory,
		cacheKind: cacheMemory,
	}

	var store rules.RuleStore
	if db != nil {
		store = rules.NewPostgresRuleStore(db, cfg.RuleSet)
		s.storeKind = storePostgres
	} else {
		seeded, err := rules.NewSeededRuleStore(risk.StandardRules())
		if err != nil {
			return nil, fmt.Errorf("failed to seed rule table: %w", err)
		}
		store = seeded
	}

	cacheConfig := rules.CacheConfig{TTL: cfg.RulesCacheTTL}
	var cache rules.RulesCache = rules.NewInMemoryRulesCache(cacheConfig)
	switch {
	case rdb != nil && db != nil:
		cache = rules.NewRedisRulesCache(rdb, cfg.RuleSet, cacheConfig, logger.Logger)
		s.rdb = rdb
		s.cacheKind = cacheRedis
	case rdb != nil:
		logger.Logger.Warn("REDIS_URL ignored without DATABASE_URL")
		rdb.Close()
	}

	engine, err := risk.NewEngine(store, rules.WithCache(cache))
	if err != nil {
		return nil, fmt.Errorf("failed to load rule table: %w", err)
	}
	s.scorer = risk.NewScorer(engine)

	active, err := engine.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	if len(active) == 0 {
		logger.Logger.Warn("rule set has no active rules", "ruleSet", cfg.RuleSet)
	}
	logger.Info("rule table loaded",
		"store", s.storeKind, "cache", s.cacheKind, "ruleSet", cfg.RuleSet, "activeRules", len(active))

	s.setupRoutes()

	return s, nil
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func openRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rdb, nil
}

// Close releases the backend connections.
func (s *Server) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Post("/api/v1/assess", s.handleAssess)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Store:   s.storeKind,
		Cache:   s.cacheKind,
		RuleSet: s.cfg.RuleSet,
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	active, err := s.scorer.Engine().ListActive()
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.ActiveRules = len(active)

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MetricsResponse{Counters: logger.Snapshot()})
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	features, err := req.features()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	startTime := time.Now()
	report, err := s.scorer.Assess(features)
	evaluationTime := time.Since(startTime)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	logger.AssessmentsTotal.Add(1)
	if threshold := s.cfg.SlowAssessmentThreshold; threshold > 0 && evaluationTime > threshold {
		logger.WarnSlowAssessment()
		logger.Logger.Warn("slow assessment",
			"duration", evaluationTime.String(), "threshold", threshold.String(),
			"requestId", middleware.GetReqID(r.Context()))
	}
	logger.Debug("assessment",
		"score", report.Score, "band", report.Band, "reasons", len(report.Reasons))

	respondJSON(w, http.StatusOK, AssessResponse{
		Report:         report,
		EvaluationTime: evaluationTime.String(),
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	active, err := s.scorer.Engine().ListActive()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RulesListResponse{
		RuleSet: s.cfg.RuleSet,
		Rules:   active,
	})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := req.toRule(uuid.NewString())
	if err := s.scorer.Engine().AddRule(rule); err != nil {
		respondServiceError(w, err)
		return
	}

	logger.Info("rule added", "ruleId", rule.ID, "name", rule.Name, "weight", rule.Weight)
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.scorer.Engine().GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	engine := s.scorer.Engine()
	rule, err := engine.GetRule(ruleID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	req.apply(rule)
	if err := engine.UpdateRule(rule); err != nil {
		respondServiceError(w, err)
		return
	}

	logger.Info("rule updated", "ruleId", rule.ID, "active", rule.Active)
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	if err := s.scorer.Engine().DeleteRule(ruleID); err != nil {
		respondServiceError(w, err)
		return
	}

	logger.Info("rule deleted", "ruleId", ruleID)
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Logger.Error(message, "status", status, "error", err)
	case status >= 400:
		logger.WarnHttp4xx(status)
	}

	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondServiceError maps domain sentinel errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, risk.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid appointment features", err)
	case errors.Is(err, rules.ErrInvalidRule):
		respondError(w, http.StatusBadRequest, "invalid rule", err)
	case errors.Is(err, rules.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule not found", err)
	case errors.Is(err, rules.ErrRuleExists):
		respondError(w, http.StatusConflict, "rule already exists", err)
	case errors.Is(err, risk.ErrEvaluation):
		respondError(w, http.StatusInternalServerError, "rule evaluation failed", err)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	var handler http.Handler = server
	if cfg.OTELEnabled {
		handler = otelhttp.NewHandler(handler, cfg.OTELServiceName)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	_ = logger.Shutdown(ctx)
}
