// Package decisionlog records every optimization decision the engine makes
// (recommendation issued, cache verdict, learning update) as a structured
// audit trail, independent of the request/response payloads themselves.
package decisionlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// Event represents one decision event.
type Event struct {
	Time        string  `json:"time"` // ISO8601
	Action      string  `json:"action"` // "recommend" | "cache_decision" | "learn" | "retrain"
	RequestID   string  `json:"request_id,omitempty"`
	RequestType string  `json:"request_type,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Outcome     string  `json:"outcome"` // "applied" | "skipped" | "error"
	Message     string  `json:"message,omitempty"`
}

var decisionLog = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// LogRecommendation records an issued recommendation.
func LogRecommendation(requestID, requestType string, rec models.OptimizationRecommendation, outcome, message string) {
	e := Event{
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Action:      "recommend",
		RequestID:   requestID,
		RequestType: requestType,
		Strategy:    string(rec.Strategy),
		Confidence:  rec.Confidence,
		Outcome:     outcome,
		Message:     message,
	}
	decisionLog.Info("decision", "event", mustMarshal(e))
}

// LogCacheDecision records a caching verdict.
func LogCacheDecision(requestID, requestType string, rec models.CachingRecommendation, message string) {
	outcome := "skipped"
	if rec.ShouldCache {
		outcome = "applied"
	}
	e := Event{
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Action:      "cache_decision",
		RequestID:   requestID,
		RequestType: requestType,
		Outcome:     outcome,
		Message:     message,
	}
	decisionLog.Info("decision", "event", mustMarshal(e))
}

// LogLearn records one learning update.
func LogLearn(requestID, requestType string, outcome, message string) {
	e := Event{
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Action:      "learn",
		RequestID:   requestID,
		RequestType: requestType,
		Outcome:     outcome,
		Message:     message,
	}
	decisionLog.Info("decision", "event", mustMarshal(e))
}

// LogRetrain records a Pattern Recognition Engine retraining pass.
func LogRetrain(requestType string, stats models.ModelStats, outcome, message string) {
	e := Event{
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Action:      "retrain",
		RequestType: requestType,
		Confidence:  stats.Accuracy,
		Outcome:     outcome,
		Message:     message,
	}
	decisionLog.Info("decision", "event", mustMarshal(e))
}

func mustMarshal(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
