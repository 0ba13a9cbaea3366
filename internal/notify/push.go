package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oliveagle/jsonpath"

	"github.com/tavira/kestrel/internal/store"
)

// Push delivers execution summaries to an Expo-compatible push endpoint
// using the token registered in the store.
type Push struct {
	tokens     TokenSource
	httpClient *http.Client
	endpoint   string
}

// NewPush creates a push notifier against the given endpoint.
func NewPush(tokens TokenSource, endpoint string, timeout time.Duration) *Push {
	return &Push{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoint: endpoint,
	}
}

// pushMessage is the request body the push endpoint expects.
type pushMessage struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

// Notify sends the summary to the registered device. Missing or structurally
// invalid tokens and delivery failures are logged and swallowed.
func (p *Push) Notify(ctx context.Context, summary string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in push notifier", "panic", r)
		}
	}()

	token, err := p.tokens.PushToken(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("No push token registered, skipping notification")
		} else {
			slog.Warn("Failed to look up push token", "error", err)
		}
		return
	}
	if !validToken(token) {
		slog.Warn("Registered push token is structurally invalid, skipping notification")
		return
	}

	body, err := json.Marshal(pushMessage{
		To:    token,
		Title: "Schedule executed",
		Body:  summary,
		Sound: "default",
	})
	if err != nil {
		slog.Warn("Failed to marshal push message", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		slog.Warn("Failed to create push request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Warn("Push delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		slog.Warn("Failed to read push response body", "error", err)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Push endpoint returned non-success status",
			"status_code", resp.StatusCode,
			"body", string(respBytes),
		)
		return
	}

	if status := deliveryStatus(respBytes); status != "" && status != "ok" {
		slog.Warn("Push endpoint reported delivery error", "status", status)
		return
	}

	slog.Info("Push notification delivered", "summary", summary)
}

// deliveryStatus extracts $.data.status from the endpoint response, or ""
// when the response does not carry one.
func deliveryStatus(body []byte) string {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}
	result, err := jsonpath.JsonPathLookup(data, "$.data.status")
	if err != nil {
		return ""
	}
	status, ok := result.(string)
	if !ok {
		return ""
	}
	return status
}

// validToken applies a structural check only; the endpoint is the authority
// on whether the token is live.
func validToken(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && len(token) < 512 && !strings.ContainsAny(token, " \t\n")
}
