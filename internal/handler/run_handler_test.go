package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tavira/kestrel/internal/bridge"
	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/notify"
	"github.com/tavira/kestrel/internal/service"
	"github.com/tavira/kestrel/internal/store"
	"github.com/tavira/kestrel/pkg/middleware"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	publisher := bridge.NewFakePublisher()

	runner := service.NewRunner(mem, &notify.Fake{}, publisher, time.UTC)
	scheduleService := service.NewScheduleService(mem)
	relayService := service.NewRelayService(mem, publisher, true)

	router := NewRouter(
		NewScheduleHandler(scheduleService),
		NewRelayHandler(relayService),
		NewRunHandler(runner),
		NewHealthHandler(mem, "test"),
		middleware.CORSConfig{AllowedOrigins: "*"},
	)
	return router.Handler(), mem
}

func seedMatchingRule(mem *store.Memory) {
	mem.Seed(
		model.RelayState{"relay1": false},
		model.ScheduleEnabled{"relay1": true},
		[]model.ScheduleRule{{
			ID: "r1", Relay: model.RuleScopeAll, Time: "07:00", Action: model.ActionOn, CreatedAt: 1,
		}},
	)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRunWithTimeOverride(t *testing.T) {
	h, mem := newTestRouter(t)
	seedMatchingRule(mem)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/schedules/run?time=07:00", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.OK {
		t.Errorf("ok = false, want true")
	}
	if resp.Result == nil || resp.Result.Executed != 1 {
		t.Errorf("result = %+v, want executed 1", resp.Result)
	}
	if !mem.Relay("relay1") {
		t.Error("relay1 should be ON after the triggered run")
	}
}

func TestRunWithUnpaddedOverride(t *testing.T) {
	h, mem := newTestRouter(t)
	seedMatchingRule(mem)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/schedules/run?time=7:00", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestRunNoMatchingRule(t *testing.T) {
	h, mem := newTestRouter(t)
	seedMatchingRule(mem)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/schedules/run?time=08:30", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.OK || resp.Result == nil || resp.Result.Executed != 0 {
		t.Errorf("response = %+v, want ok with executed 0", resp)
	}
}

func TestRunInvalidOverride(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, override := range []string{"7", "24:00", "07:61", "0700", "banana"} {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/schedules/run?time="+override, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("time=%q: status = %d, want 400", override, rec.Code)
			continue
		}
		var resp RunResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("time=%q: unmarshal: %v", override, err)
			continue
		}
		if resp.OK || resp.Error == "" {
			t.Errorf("time=%q: response = %+v, want ok:false with error", override, resp)
		}
	}
}

func TestRunStoreFailure(t *testing.T) {
	h, mem := newTestRouter(t)
	seedMatchingRule(mem)
	mem.SnapshotErr = store.ErrNotFound

	rec := doRequest(t, h, http.MethodPost, "/api/v1/schedules/run?time=07:00", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.OK {
		t.Error("ok = true, want false on store failure")
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
}

func TestRunRejectsGet(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/schedules/run", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
