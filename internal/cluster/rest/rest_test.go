package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobclient/internal/cluster"
)

const testJobID = cluster.JobID("8e1a9c44b7f2")

func newTestChannel(t *testing.T, handler http.Handler, token string) *Channel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewProvider(Config{BaseURL: server.URL, APIToken: token, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	channel, err := provider.ControlChannel()
	if err != nil {
		t.Fatalf("ControlChannel: %v", err)
	}
	t.Cleanup(func() { channel.Close() })
	return channel.(*Channel)
}

func TestRequestJobStatus(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs/8e1a9c44b7f2/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "RUNNING"})
	})
	channel := newTestChannel(t, handler, "sekrit")

	f, err := channel.RequestJobStatus(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("RequestJobStatus: %v", err)
	}
	status, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != cluster.StatusRunning {
		t.Errorf("status = %q, want RUNNING", status)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if got := r.URL.Query().Get("mode"); got != "cancel" {
			t.Errorf("mode = %q, want cancel", got)
		}
		w.WriteHeader(http.StatusAccepted)
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.Cancel(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := f.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestTriggerSavepoint(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body savepointRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.FormatType != "CANONICAL" {
			t.Errorf("formatType = %q, want CANONICAL (default)", body.FormatType)
		}
		if body.TargetDirectory != "s3://savepoints/job" {
			t.Errorf("targetDirectory = %q", body.TargetDirectory)
		}
		if body.Drain {
			t.Error("drain must be false for trigger")
		}
		json.NewEncoder(w).Encode(map[string]string{"location": "s3://savepoints/job/sp-7"})
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.TriggerSavepoint(context.Background(), testJobID, "s3://savepoints/job", "")
	if err != nil {
		t.Fatalf("TriggerSavepoint: %v", err)
	}
	location, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if location != "s3://savepoints/job/sp-7" {
		t.Errorf("location = %q", location)
	}
}

func TestStopWithSavepointDrains(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stop") {
			t.Errorf("path = %q, want .../stop", r.URL.Path)
		}
		var body savepointRequest
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Drain {
			t.Error("drain must be true")
		}
		if body.FormatType != "NATIVE" {
			t.Errorf("formatType = %q, want NATIVE", body.FormatType)
		}
		json.NewEncoder(w).Encode(map[string]string{"location": "file:///sp-final"})
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.StopWithSavepoint(context.Background(), testJobID, true, "", cluster.SavepointFormatNative)
	if err != nil {
		t.Fatalf("StopWithSavepoint: %v", err)
	}
	if location, err := f.Get(context.Background()); err != nil || location != "file:///sp-final" {
		t.Errorf("Get = (%q, %v)", location, err)
	}
}

func TestUnknownSavepointFormatFailsSynchronously(t *testing.T) {
	t.Parallel()
	channel := newTestChannel(t, http.NotFoundHandler(), "")

	if _, err := channel.TriggerSavepoint(context.Background(), testJobID, "", "ZIPPED"); err == nil {
		t.Error("expected synchronous failure for unknown format")
	}
}

func TestCoordinationRoundTrip(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/coordination/sink-1") {
			t.Errorf("path = %q, want .../coordination/sink-1", r.URL.Path)
		}
		var body coordinationRequestBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.Kind != "collect" || body.Version != "v3" || body.Offset != 128 {
			t.Errorf("body = %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"payload": base64.StdEncoding.EncodeToString([]byte("batch")),
		})
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.SendCoordinationRequest(context.Background(), testJobID, "sink-1", &cluster.CollectRequest{Version: "v3", Offset: 128})
	if err != nil {
		t.Fatalf("SendCoordinationRequest: %v", err)
	}
	resp, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Payload) != "batch" {
		t.Errorf("payload = %q, want batch", resp.Payload)
	}
}

func TestJobResultRoundTrip(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":           testJobID,
			"success":      true,
			"netRuntime":   int64(5 * time.Second),
			"accumulators": map[string]any{"count": 9},
		})
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.RequestJobResult(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("RequestJobResult: %v", err)
	}
	result, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !result.Success || result.NetRuntime != 5*time.Second {
		t.Errorf("result = %+v", result)
	}
}

func TestErrorStatusFailsFuture(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "job not found", http.StatusNotFound)
	})
	channel := newTestChannel(t, handler, "")

	f, err := channel.RequestJobStatus(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("RequestJobStatus: %v", err)
	}
	_, err = f.Get(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404 failure", err)
	}
}

func TestClosedChannelFailsSynchronously(t *testing.T) {
	t.Parallel()
	channel := newTestChannel(t, http.NotFoundHandler(), "")

	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := channel.Close(); err == nil {
		t.Error("expected error on double close")
	}
	if _, err := channel.RequestJobStatus(context.Background(), testJobID); err == nil {
		t.Error("expected synchronous failure on closed channel")
	}
}

func TestProviderReady(t *testing.T) {
	t.Parallel()
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	provider, err := NewProvider(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if err := provider.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}
	if gotPath != "/v1/overview" {
		t.Errorf("path = %q, want /v1/overview", gotPath)
	}
}

func TestNewProviderRejectsBadURL(t *testing.T) {
	t.Parallel()
	if _, err := NewProvider(Config{BaseURL: "ftp://cluster"}); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
