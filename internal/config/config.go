// Package config loads the optimizer's configuration surface from file, env,
// and built-in defaults using viper, following the same load pattern across
// every group: engine, caching behavior, per-request-type policy, load
// metrics, performance tracking, and connection estimates.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full configuration surface for the optimizer middleware.
type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // json | text

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`

	// Tracing
	TracingEnabled      bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint     string  `mapstructure:"tracing_endpoint"`
	TracingServiceName  string  `mapstructure:"tracing_service_name"`
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`

	// Engine
	Enabled                       bool    `mapstructure:"enabled"`
	LearningEnabled               bool    `mapstructure:"learning_enabled"`
	MinConfidenceScore            float64 `mapstructure:"min_confidence_score"`
	MinExecutionsForAnalysis      int     `mapstructure:"min_executions_for_analysis"`
	ModelUpdateIntervalSec        int     `mapstructure:"model_update_interval_sec"`
	MaxAutomaticOptimizationRisk  string  `mapstructure:"max_automatic_optimization_risk"` // models.Risk
	DefaultBatchSize              int     `mapstructure:"default_batch_size"`
	MaxBatchSize                  int     `mapstructure:"max_batch_size"`
	MinimumForRetraining          int     `mapstructure:"minimum_for_retraining"`
	RetrainingEMAAlpha            float64 `mapstructure:"retraining_ema_alpha"`

	// Opportunity thresholds promoted from hard-coded constants
	RepeatRateOpportunityThreshold float64 `mapstructure:"repeat_rate_opportunity_threshold"`
	BatchSizeOpportunityThreshold  float64 `mapstructure:"batch_size_opportunity_threshold"`

	// Caching behavior
	EnableCaching                bool  `mapstructure:"enable_caching"`
	MinExecutionTimeForCachingMs  int   `mapstructure:"min_execution_time_for_caching_ms"`
	MaxCachedResponseSizeBytes    int64 `mapstructure:"max_cached_response_size_bytes"`
	DefaultCacheTTLSec            int   `mapstructure:"default_cache_ttl_sec"`
	UseDynamicTTL                 bool  `mapstructure:"use_dynamic_ttl"`
	RecommendationCacheSize       int   `mapstructure:"recommendation_cache_size"`

	// Per-request-type policy defaults
	DefaultEnableAIAnalysis    bool    `mapstructure:"default_enable_ai_analysis"`
	DefaultMinAccessFrequency  float64 `mapstructure:"default_min_access_frequency"`
	DefaultMinPredictedHitRate float64 `mapstructure:"default_min_predicted_hit_rate"`
	DefaultPreferredScope      string  `mapstructure:"default_preferred_scope"` // models.Scope

	// Load metrics
	LoadMetricsEnableCaching           bool  `mapstructure:"load_metrics_enable_caching"`
	LoadMetricsCacheTTLSec             int   `mapstructure:"load_metrics_cache_ttl_sec"`
	LoadMetricsCacheRefreshIntervalSec int   `mapstructure:"load_metrics_cache_refresh_interval_sec"`
	UseCachedCPUMeasurements           bool  `mapstructure:"use_cached_cpu_measurements"`
	CPUMeasurementIntervalMs           int   `mapstructure:"cpu_measurement_interval_ms"`
	BaselineMemoryBytes                int64 `mapstructure:"baseline_memory_bytes"`

	// Performance tracking
	TrackingEnabled                  bool `mapstructure:"tracking_enabled"`
	TrackingDetailedLogging          bool `mapstructure:"tracking_detailed_logging"`
	TrackingPeriodicExport           bool `mapstructure:"tracking_periodic_export"`
	TrackingImmediateExport          bool `mapstructure:"tracking_immediate_export"`
	TrackingExportIntervalSec        int  `mapstructure:"tracking_export_interval_sec"`
	TrackingImmediateExportThreshold int  `mapstructure:"tracking_immediate_export_threshold"`
	TrackingResetAfterExport         bool `mapstructure:"tracking_reset_after_export"`
	TrackingSlidingWindowSize        int  `mapstructure:"tracking_sliding_window_size"`
	TrackingPercentiles              bool `mapstructure:"tracking_percentiles"`

	// Connection estimates
	MaxEstimatedHTTPConnections      int `mapstructure:"max_estimated_http_connections"`
	MaxEstimatedDBConnections        int `mapstructure:"max_estimated_db_connections"`
	EstimatedMaxDBConnections        int `mapstructure:"estimated_max_db_connections"`
	MaxEstimatedExternalConnections  int `mapstructure:"max_estimated_external_connections"`
	MaxEstimatedWebSocketConnections int `mapstructure:"max_estimated_websocket_connections"`

	// Time-series store
	TimeSeriesMaxHistorySize int     `mapstructure:"time_series_max_history_size"`
	AnomalyZScoreThreshold   float64 `mapstructure:"anomaly_z_score_threshold"`
	MinPointsForAnomaly      int     `mapstructure:"min_points_for_anomaly"`

	// Request analysis store
	RequestAnalysisWindowSize int `mapstructure:"request_analysis_window_size"`
	AnalyticsRetentionHours   int `mapstructure:"analytics_retention_hours"`
	MaxPredictionHistory      int `mapstructure:"max_prediction_history"`
	CleanupIntervalSec        int `mapstructure:"cleanup_interval_sec"`

	// Health scorer weights (must sum to 1.0; normalized defensively if not)
	HealthWeightCPU        float64 `mapstructure:"health_weight_cpu"`
	HealthWeightMemory     float64 `mapstructure:"health_weight_memory"`
	HealthWeightErrorRate  float64 `mapstructure:"health_weight_error_rate"`
	HealthWeightP95Latency float64 `mapstructure:"health_weight_p95_latency"`
	HealthWeightQueueDepth float64 `mapstructure:"health_weight_queue_depth"`

	// Normalization baselines for metrics that aren't already [0,1]
	HealthP95LatencyBaselineMs int `mapstructure:"health_p95_latency_baseline_ms"`
	HealthQueueDepthBaseline   int `mapstructure:"health_queue_depth_baseline"`

	// Testing-only introspection seam
	TestingHooksEnabled bool `mapstructure:"testing_hooks_enabled"`
}

// Load reads configuration from `./config.yaml` (or /etc/reqopt/,
// $HOME/.reqopt), environment variables prefixed REQOPT_, and falls back to
// the defaults below. A missing config file is not an error.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/reqopt/")
	viper.AddConfigPath("$HOME/.reqopt")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8090)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("shutdown_timeout_sec", 15)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_service_name", "reqopt")
	viper.SetDefault("tracing_sampling_rate", 1.0)

	viper.SetDefault("enabled", true)
	viper.SetDefault("learning_enabled", true)
	viper.SetDefault("min_confidence_score", 0.7)
	viper.SetDefault("min_executions_for_analysis", 5)
	viper.SetDefault("model_update_interval_sec", 300)
	viper.SetDefault("max_automatic_optimization_risk", "Medium")
	viper.SetDefault("default_batch_size", 10)
	viper.SetDefault("max_batch_size", 100)
	viper.SetDefault("minimum_for_retraining", 10)
	viper.SetDefault("retraining_ema_alpha", 0.3)

	viper.SetDefault("repeat_rate_opportunity_threshold", 0.30)
	viper.SetDefault("batch_size_opportunity_threshold", 5.0)

	viper.SetDefault("enable_caching", true)
	viper.SetDefault("min_execution_time_for_caching_ms", 100)
	viper.SetDefault("max_cached_response_size_bytes", 1<<20) // 1MiB
	viper.SetDefault("default_cache_ttl_sec", 60)
	viper.SetDefault("use_dynamic_ttl", false)
	viper.SetDefault("recommendation_cache_size", 10000)

	viper.SetDefault("default_enable_ai_analysis", true)
	viper.SetDefault("default_min_access_frequency", 1.0)
	viper.SetDefault("default_min_predicted_hit_rate", 0.5)
	viper.SetDefault("default_preferred_scope", "Global")

	viper.SetDefault("load_metrics_enable_caching", true)
	viper.SetDefault("load_metrics_cache_ttl_sec", 5)
	viper.SetDefault("load_metrics_cache_refresh_interval_sec", 10)
	viper.SetDefault("use_cached_cpu_measurements", true)
	viper.SetDefault("cpu_measurement_interval_ms", 200)
	viper.SetDefault("baseline_memory_bytes", int64(4)<<30) // 4GiB

	viper.SetDefault("tracking_enabled", true)
	viper.SetDefault("tracking_detailed_logging", false)
	viper.SetDefault("tracking_periodic_export", true)
	viper.SetDefault("tracking_immediate_export", true)
	viper.SetDefault("tracking_export_interval_sec", 300)
	viper.SetDefault("tracking_immediate_export_threshold", 1000)
	viper.SetDefault("tracking_reset_after_export", true)
	viper.SetDefault("tracking_sliding_window_size", 10000)
	viper.SetDefault("tracking_percentiles", true)

	viper.SetDefault("max_estimated_http_connections", 10000)
	viper.SetDefault("max_estimated_db_connections", 500)
	viper.SetDefault("estimated_max_db_connections", 100)
	viper.SetDefault("max_estimated_external_connections", 1000)
	viper.SetDefault("max_estimated_websocket_connections", 5000)

	viper.SetDefault("time_series_max_history_size", 10000)
	viper.SetDefault("anomaly_z_score_threshold", 3.0)
	viper.SetDefault("min_points_for_anomaly", 10)

	viper.SetDefault("request_analysis_window_size", 10000)
	viper.SetDefault("analytics_retention_hours", 24)
	viper.SetDefault("max_prediction_history", 5000)
	viper.SetDefault("cleanup_interval_sec", 300)

	viper.SetDefault("health_weight_cpu", 0.25)
	viper.SetDefault("health_weight_memory", 0.2)
	viper.SetDefault("health_weight_error_rate", 0.25)
	viper.SetDefault("health_weight_p95_latency", 0.2)
	viper.SetDefault("health_weight_queue_depth", 0.1)
	viper.SetDefault("health_p95_latency_baseline_ms", 500)
	viper.SetDefault("health_queue_depth_baseline", 100)

	viper.SetDefault("testing_hooks_enabled", false)

	viper.SetEnvPrefix("REQOPT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Auto-enable tracing if OTEL_EXPORTER_OTLP_ENDPOINT is set, mirroring a
	// standard otel-instrumented service's bootstrap.
	if !cfg.TracingEnabled && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.TracingEnabled = true
		if cfg.TracingEndpoint == "" {
			cfg.TracingEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
	}

	return &cfg, nil
}
