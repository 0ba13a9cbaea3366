package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tavira/kestrel/internal/store"
)

func TestPushDeliversRegisteredToken(t *testing.T) {
	var received pushMessage
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode push request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer server.Close()

	mem := store.NewMemory()
	mem.SetToken("ExponentPushToken[abc123]")
	push := NewPush(mem, server.URL, 5*time.Second)

	push.Notify(context.Background(), "ALL ON")

	if calls != 1 {
		t.Fatalf("push endpoint calls = %d, want 1", calls)
	}
	if received.To != "ExponentPushToken[abc123]" {
		t.Errorf("To = %q, want the registered token", received.To)
	}
	if received.Body != "ALL ON" {
		t.Errorf("Body = %q, want summary", received.Body)
	}
}

func TestPushSkipsWhenNoTokenRegistered(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	push := NewPush(store.NewMemory(), server.URL, 5*time.Second)
	push.Notify(context.Background(), "ALL ON")

	if calls != 0 {
		t.Errorf("push endpoint calls = %d, want 0 without a token", calls)
	}
}

func TestPushSkipsStructurallyInvalidToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	mem := store.NewMemory()
	mem.SetToken("not a token\nwith newlines")
	push := NewPush(mem, server.URL, 5*time.Second)
	push.Notify(context.Background(), "ALL ON")

	if calls != 0 {
		t.Errorf("push endpoint calls = %d, want 0 for invalid token", calls)
	}
}

func TestPushSwallowsDeliveryFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mem := store.NewMemory()
	mem.SetToken("ExponentPushToken[abc123]")
	push := NewPush(mem, server.URL, 5*time.Second)

	// Must not panic or propagate anything.
	push.Notify(context.Background(), "ALL OFF")
}

func TestPushSwallowsUnreachableEndpoint(t *testing.T) {
	mem := store.NewMemory()
	mem.SetToken("ExponentPushToken[abc123]")
	push := NewPush(mem, "http://127.0.0.1:1", 500*time.Millisecond)

	push.Notify(context.Background(), "ALL ON")
}

func TestPushLogsEndpointReportedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"error","message":"DeviceNotRegistered"}}`))
	}))
	defer server.Close()

	mem := store.NewMemory()
	mem.SetToken("ExponentPushToken[abc123]")
	push := NewPush(mem, server.URL, 5*time.Second)

	// Endpoint-level errors are logged, never returned.
	push.Notify(context.Background(), "ALL ON")
}

func TestDeliveryStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ok", `{"data":{"status":"ok"}}`, "ok"},
		{"error", `{"data":{"status":"error"}}`, "error"},
		{"missing", `{"data":{}}`, ""},
		{"not json", `nope`, ""},
		{"non-string status", `{"data":{"status":7}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deliveryStatus([]byte(tt.body)); got != tt.want {
				t.Errorf("deliveryStatus(%s) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
