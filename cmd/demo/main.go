// Command demo wires the Optimization Engine, its Time-Series Store, and
// the three pipeline behaviors into a runnable HTTP server: load config,
// construct collaborators, wire the router, serve, and shut down gracefully
// on signal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kubilitics-labs/reqopt/internal/analysis"
	"github.com/kubilitics-labs/reqopt/internal/behaviors"
	"github.com/kubilitics-labs/reqopt/internal/cleanup"
	"github.com/kubilitics-labs/reqopt/internal/config"
	"github.com/kubilitics-labs/reqopt/internal/connmetrics"
	"github.com/kubilitics-labs/reqopt/internal/health"
	"github.com/kubilitics-labs/reqopt/internal/httpmw"
	"github.com/kubilitics-labs/reqopt/internal/insights"
	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/optimizer"
	"github.com/kubilitics-labs/reqopt/internal/patterns"
	"github.com/kubilitics-labs/reqopt/internal/pkg/logger"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
	"github.com/kubilitics-labs/reqopt/internal/pkg/reccache"
	"github.com/kubilitics-labs/reqopt/internal/pkg/tracing"
	"github.com/kubilitics-labs/reqopt/internal/ports"
	"github.com/kubilitics-labs/reqopt/internal/sysmetrics"
	"github.com/kubilitics-labs/reqopt/internal/timeseries"
)

func main() {
	log := logger.StdLogger()
	log.Info("reqopt demo starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{Port: 8090, AllowedOrigins: []string{"*"}}
	}

	shutdownTracing, err := tracing.Init(cfg.TracingServiceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
	if err != nil {
		log.Warn("tracing init failed, continuing without spans", "error", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	analysisStore := analysis.New(cfg.RequestAnalysisWindowSize)

	tsStore := timeseries.New(cfg.TimeSeriesMaxHistorySize,
		timeseries.WithZScoreThreshold(cfg.AnomalyZScoreThreshold),
		timeseries.WithMinPointsForAnomaly(cfg.MinPointsForAnomaly),
	)

	calc := sysmetrics.NewCalculator(processCPUSampler(), 0, cfg.TestingHooksEnabled)
	loadProvider := sysmetrics.NewProvider(calc, analysisStore, sysmetrics.ProviderOptions{
		EnableCaching:            cfg.LoadMetricsEnableCaching,
		CacheTTL:                 time.Duration(cfg.LoadMetricsCacheTTLSec) * time.Second,
		CacheRefreshInterval:     time.Duration(cfg.LoadMetricsCacheRefreshIntervalSec) * time.Second,
		UseCachedCPUMeasurements: cfg.UseCachedCPUMeasurements,
		CPUMeasurementInterval:   time.Duration(cfg.CPUMeasurementIntervalMs) * time.Millisecond,
	})
	loadProvider.Start(ctx)
	defer loadProvider.Stop()

	scorer := health.New(health.Weights{
		CPU:                cfg.HealthWeightCPU,
		Memory:             cfg.HealthWeightMemory,
		ErrorRate:          cfg.HealthWeightErrorRate,
		P95Latency:         cfg.HealthWeightP95Latency,
		QueueDepth:         cfg.HealthWeightQueueDepth,
		P95LatencyBaseline: time.Duration(cfg.HealthP95LatencyBaselineMs) * time.Millisecond,
		QueueDepthBaseline: cfg.HealthQueueDepthBaseline,
	})

	patternsEngine := patterns.New(cfg.RetrainingEMAAlpha, cfg.MinimumForRetraining, log)

	conns := connmetrics.New(map[connmetrics.Category]int{
		connmetrics.CategoryHTTP:      cfg.MaxEstimatedHTTPConnections,
		connmetrics.CategoryDB:        cfg.MaxEstimatedDBConnections,
		connmetrics.CategoryExternal:  cfg.MaxEstimatedExternalConnections,
		connmetrics.CategoryWebSocket: cfg.MaxEstimatedWebSocketConnections,
	})
	conns.AddEstimator(connmetrics.CategoryHTTP, func() int { return connmetrics.DefaultHTTPFallback() })

	defaultPolicy := ports.Policy{
		EnableAIAnalysis:    cfg.DefaultEnableAIAnalysis,
		MinAccessFrequency:  cfg.DefaultMinAccessFrequency,
		MinPredictedHitRate: cfg.DefaultMinPredictedHitRate,
		UseDynamicTTL:       cfg.UseDynamicTTL,
		PreferredScope:      models.Scope(cfg.DefaultPreferredScope),
	}

	engine := optimizer.New(optimizer.Config{
		MinConfidenceScore:             cfg.MinConfidenceScore,
		MinExecutionsForAnalysis:       cfg.MinExecutionsForAnalysis,
		ModelUpdateInterval:            time.Duration(cfg.ModelUpdateIntervalSec) * time.Second,
		MaxAutomaticOptimizationRisk:   models.Risk(cfg.MaxAutomaticOptimizationRisk),
		DefaultBatchSize:               cfg.DefaultBatchSize,
		MaxBatchSize:                   cfg.MaxBatchSize,
		MinimumForRetraining:           cfg.MinimumForRetraining,
		RepeatRateOpportunityThreshold: cfg.RepeatRateOpportunityThreshold,
		BatchSizeOpportunityThreshold:  cfg.BatchSizeOpportunityThreshold,
		DefaultCacheTTL:                time.Duration(cfg.DefaultCacheTTLSec) * time.Second,
		DefaultPolicy:                  defaultPolicy,
		P95LatencyBaselineMs:           cfg.HealthP95LatencyBaselineMs,
	}, analysisStore, patternsEngine, scorer, loadProvider, nil, log)
	engine.SetLearningMode(cfg.LearningEnabled)
	engine.Start(ctx)
	defer engine.Dispose()

	cleanupMgr := cleanup.New(cleanup.Config{
		Interval:        time.Duration(cfg.CleanupIntervalSec) * time.Second,
		RetentionWindow: time.Duration(cfg.AnalyticsRetentionHours) * time.Hour,
		MaxPredictions:  cfg.MaxPredictionHistory,
	}, analysisStore, engine, log)
	cleanupMgr.Start(ctx)
	defer cleanupMgr.Stop()

	recCache := reccache.New(cfg.RecommendationCacheSize, time.Duration(cfg.DefaultCacheTTLSec)*time.Second)

	cachingBehavior := behaviors.NewCachingBehavior(behaviors.CachingConfig{
		EnableCaching:              cfg.EnableCaching,
		MinExecutionTimeForCaching: time.Duration(cfg.MinExecutionTimeForCachingMs) * time.Millisecond,
		MaxCachedResponseSize:      int(cfg.MaxCachedResponseSizeBytes),
	}, behaviors.ReccacheAdapter{Cache: recCache}, engine, func(string) (ports.Policy, bool) { return defaultPolicy, true }, log)

	aiBehavior := behaviors.NewAIOptimizationBehavior(behaviors.AIOptimizationConfig{
		Enabled: cfg.Enabled,
	}, engine, log)

	exporter := metrics.NewExporter()
	trackingBehavior := behaviors.NewPerformanceTrackingBehavior(behaviors.TrackingConfig{
		EnableTracking:           cfg.TrackingEnabled,
		EnableDetailedLogging:    cfg.TrackingDetailedLogging,
		EnablePeriodicExport:     cfg.TrackingPeriodicExport,
		EnableImmediateExport:    cfg.TrackingImmediateExport,
		ExportInterval:           time.Duration(cfg.TrackingExportIntervalSec) * time.Second,
		ImmediateExportThreshold: cfg.TrackingImmediateExportThreshold,
		ResetAfterExport:         cfg.TrackingResetAfterExport,
		SlidingWindowSize:        cfg.TrackingSlidingWindowSize,
		TrackPercentiles:         cfg.TrackingPercentiles,
	}, exporter, log)
	defer trackingBehavior.Dispose()

	pipeline := ports.Compose(trackingBehavior, aiBehavior, cachingBehavior)

	hub := insights.NewHub(ctx)
	go hub.Run()
	defer hub.Stop()
	go publishInsightsPeriodically(ctx, engine, hub, log)

	router := buildRouter(ctx, cfg, engine, pipeline, tsStore, conns, hub, log)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}).Handler(router)

	srv := &http.Server{
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	go func() {
		log.Info("reqopt demo listening", "port", cfg.Port)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", "error", err)
	}
	log.Info("shutdown complete")
}

// buildRouter lays out the demo's HTTP surface: a synthetic pipeline
// endpoint that exercises the three behaviors end to end, read-only
// introspection endpoints for insights/model stats, Prometheus metrics, the
// insights WebSocket stream, and a health check.
func buildRouter(ctx context.Context, cfg *config.Config, engine *optimizer.Engine, pipeline ports.Behavior, tsStore *timeseries.Store, conns *connmetrics.Collector, hub *insights.Hub, log *slog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "reqopt"})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/pipeline/{requestType}", func(w http.ResponseWriter, r *http.Request) {
		requestType := mux.Vars(r)["requestType"]
		req := ports.Request{Type: requestType, Payload: map[string]string{"path": r.URL.Path}}

		start := time.Now()
		resp, err := pipeline.Handle(r.Context(), req, func(ctx context.Context) (any, error) {
			return downstreamHandler(ctx, requestType)
		})
		conns.Estimate(connmetrics.CategoryHTTP)
		tsStore.Store("pipeline."+requestType+".duration_ms", float64(time.Since(start).Milliseconds()), time.Now())

		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}).Methods("GET", "POST")

	router.HandleFunc("/insights", func(w http.ResponseWriter, r *http.Request) {
		window := 1 * time.Hour
		in, err := engine.GetSystemInsights(r.Context(), window)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, in)
	}).Methods("GET")

	router.HandleFunc("/models/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := engine.GetModelStatistics()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}).Methods("GET")

	router.HandleFunc("/models/validate", func(w http.ResponseWriter, r *http.Request) {
		result, err := engine.ValidateModel()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}).Methods("GET")

	router.HandleFunc("/timeseries/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		points := tsStore.Range(key, 1*time.Hour)
		anomalies := tsStore.DetectAnomalies(key, 500)
		writeJSON(w, http.StatusOK, map[string]any{"points": points, "anomalies": anomalies})
	}).Methods("GET")

	wsHandler := insights.NewHandler(ctx, hub, cfg.AllowedOrigins, log)
	router.HandleFunc("/ws/insights", wsHandler.ServeWS).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	router.Use(httpmw.SecureHeaders)
	router.Use(httpmw.RequestID)
	router.Use(httpmw.StructuredLog)
	router.Use(httpmw.Recovery)
	router.Use(httpmw.Tracing)
	router.Use(httpmw.RateLimit(600, 60))
	router.Use(httpmw.MaxBodySize(1 << 20))

	return router
}

// downstreamHandler stands in for the real handler implementations behind
// the pipeline: a synthetic workload with request-type-shaped latency so
// the demo has something for the behaviors to observe and learn from.
func downstreamHandler(ctx context.Context, requestType string) (any, error) {
	delay := 2*time.Millisecond + time.Duration(rand.Intn(40))*time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{"request_type": requestType, "result": "ok"}, nil
}

// publishInsightsPeriodically broadcasts a fresh SystemPerformanceInsights
// snapshot to every connected insights client every 10s.
func publishInsightsPeriodically(ctx context.Context, engine *optimizer.Engine, hub *insights.Hub, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			in, err := engine.GetSystemInsights(ctx, 1*time.Hour)
			if err != nil {
				continue
			}
			if err := hub.BroadcastInsights(in); err != nil {
				log.Debug("insights broadcast failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// processCPUSampler returns a CPUSampler estimating process CPU utilization
// from two runtime.GOMAXPROCS-normalized goroutine-scheduling snapshots, a
// stdlib-only proxy since nothing in the retrieved dependency set exposes
// host/process CPU sampling (see DESIGN.md).
func processCPUSampler() sysmetrics.CPUSampler {
	return func(ctx context.Context) (float64, error) {
		procs := runtime.GOMAXPROCS(0)
		if procs <= 0 {
			procs = 1
		}
		before := runtime.NumGoroutine()
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		after := runtime.NumGoroutine()
		delta := after - before
		if delta < 0 {
			delta = -delta
		}
		util := float64(delta) / float64(procs*10)
		if util > 1 {
			util = 1
		}
		if util < 0 {
			util = 0
		}
		return util, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
