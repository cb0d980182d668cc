package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordChannelLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordChannelAcquired(ctx)
	metrics.RecordChannelAcquired(ctx)
	metrics.RecordChannelReleased(ctx)
	metrics.RecordOperation(ctx, "jobclient.status", true, 0.012)
	metrics.RecordOperation(ctx, "jobclient.cancel", false, 0.250)
	metrics.RecordDispatchError(ctx, "jobclient.triggerSavepoint")
	metrics.RecordStreamingModeEntered(ctx)
	metrics.RecordChannelReleased(ctx)
}

func TestRecordHeartbeatMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHeartbeatSent(ctx)
	metrics.RecordHeartbeatFailed(ctx)
	metrics.RecordHeartbeatSkipped(ctx)
}

func TestNormalizeOp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"jobclient.status", "status"},
		{"jobclient.sendCoordinationRequest", "sendCoordinationRequest"},
		{"status", "status"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeOp(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeOp(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
