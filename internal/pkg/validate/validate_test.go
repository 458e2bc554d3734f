package validate

import (
	"testing"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

func TestRequestType(t *testing.T) {
	tests := []struct {
		rt   string
		want bool
	}{
		{"", false},
		{"GetOrderById", true},
		{"GET /orders/:id", true},
		{"order_lookup-v2", true},
		{string(make([]byte, RequestTypeMaxLen+1)), false},
		{"bad\nrequest", false},
	}
	for _, tt := range tests {
		if got := RequestType(tt.rt); got != tt.want {
			t.Errorf("RequestType(%q) = %v, want %v", tt.rt, got, tt.want)
		}
	}
}

func TestStrategy(t *testing.T) {
	if !Strategy(models.StrategyCaching) {
		t.Error("expected StrategyCaching to be valid")
	}
	if Strategy(models.Strategy("Bogus")) {
		t.Error("expected unknown strategy to be invalid")
	}
}

func TestPriority(t *testing.T) {
	if !Priority(models.PriorityHigh) {
		t.Error("expected PriorityHigh to be valid")
	}
	if Priority(models.Priority("Urgent")) {
		t.Error("expected unknown priority to be invalid")
	}
}

func TestRisk(t *testing.T) {
	if !Risk(models.RiskVeryHigh) {
		t.Error("expected RiskVeryHigh to be valid")
	}
	if Risk(models.Risk("Extreme")) {
		t.Error("expected unknown risk to be invalid")
	}
}

func TestScope(t *testing.T) {
	if !Scope(models.ScopeSession) {
		t.Error("expected ScopeSession to be valid")
	}
	if Scope(models.Scope("Galactic")) {
		t.Error("expected unknown scope to be invalid")
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		v    float64
		want bool
	}{
		{0, true},
		{1, true},
		{0.5, true},
		{-0.01, false},
		{1.01, false},
	}
	for _, tt := range cases {
		if got := Confidence(tt.v); got != tt.want {
			t.Errorf("Confidence(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestExecutionMetrics(t *testing.T) {
	valid := models.ExecutionMetrics{
		RequestType:          "GetOrder",
		TotalExecutions:      10,
		SuccessfulExecutions: 9,
		FailedExecutions:     1,
	}
	if !ExecutionMetrics(valid) {
		t.Error("expected valid execution metrics to pass")
	}

	invalid := valid
	invalid.RequestType = ""
	if ExecutionMetrics(invalid) {
		t.Error("expected empty request type to fail")
	}

	inconsistent := valid
	inconsistent.FailedExecutions = 5
	if ExecutionMetrics(inconsistent) {
		t.Error("expected inconsistent totals to fail")
	}
}
