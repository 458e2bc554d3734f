package config

import (
	"math"
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	if cfg.Port != 8090 {
		t.Errorf("Expected default port 8090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got %s", cfg.LogFormat)
	}
	if !cfg.Enabled {
		t.Error("Expected engine to be enabled by default")
	}
	if !cfg.LearningEnabled {
		t.Error("Expected learning to be enabled by default")
	}
	if cfg.MinConfidenceScore != 0.7 {
		t.Errorf("Expected default min confidence score 0.7, got %v", cfg.MinConfidenceScore)
	}
	if cfg.MinExecutionsForAnalysis != 5 {
		t.Errorf("Expected default min executions for analysis 5, got %d", cfg.MinExecutionsForAnalysis)
	}
	if cfg.RepeatRateOpportunityThreshold != 0.30 {
		t.Errorf("Expected default repeat rate opportunity threshold 0.30, got %v", cfg.RepeatRateOpportunityThreshold)
	}
	if cfg.BatchSizeOpportunityThreshold != 5.0 {
		t.Errorf("Expected default batch size opportunity threshold 5.0, got %v", cfg.BatchSizeOpportunityThreshold)
	}
	if !cfg.EnableCaching {
		t.Error("Expected caching to be enabled by default")
	}
	if cfg.TestingHooksEnabled {
		t.Error("Expected testing hooks to be disabled by default")
	}
	if math.Abs(cfg.HealthWeightCPU+cfg.HealthWeightMemory+cfg.HealthWeightErrorRate+cfg.HealthWeightP95Latency+cfg.HealthWeightQueueDepth-1.0) > 1e-9 {
		t.Errorf("Expected default health weights to sum to 1.0, got %v", cfg.HealthWeightCPU+cfg.HealthWeightMemory+cfg.HealthWeightErrorRate+cfg.HealthWeightP95Latency+cfg.HealthWeightQueueDepth)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("REQOPT_PORT", "9000")
	os.Setenv("REQOPT_LOG_LEVEL", "debug")
	os.Setenv("REQOPT_LEARNING_ENABLED", "false")
	os.Setenv("REQOPT_MIN_CONFIDENCE_SCORE", "0.85")
	defer func() {
		os.Unsetenv("REQOPT_PORT")
		os.Unsetenv("REQOPT_LOG_LEVEL")
		os.Unsetenv("REQOPT_LEARNING_ENABLED")
		os.Unsetenv("REQOPT_MIN_CONFIDENCE_SCORE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.LearningEnabled {
		t.Error("Expected learning_enabled to be overridden to false from env")
	}
	if cfg.MinConfidenceScore != 0.85 {
		t.Errorf("Expected min confidence score 0.85 from env, got %v", cfg.MinConfidenceScore)
	}
}

func TestLoad_TracingAutoEnableFromOTELEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	defer os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.TracingEnabled {
		t.Error("Expected tracing to auto-enable when OTEL_EXPORTER_OTLP_ENDPOINT is set")
	}
	if cfg.TracingEndpoint != "http://collector:4318" {
		t.Errorf("Expected tracing endpoint to default to OTEL_EXPORTER_OTLP_ENDPOINT, got %s", cfg.TracingEndpoint)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should not error when config file is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil even without config file")
	}
}
