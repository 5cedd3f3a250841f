package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

func testSummary() Summary {
	return Summary{
		Metric:      "share",
		PartnerCode: "CN",
		CutoffYear:  2020,
		Threshold:   0.5,
		SourceFile:  "trade.csv",
		Results: []model.BreakpointResult{
			{ProductCode: "8542", ProductName: "Integrated circuits", SlopeChange: -1.2, Direction: model.DirectionDeclining, IsMeaningful: true},
			{ProductCode: "8471", SlopeChange: 0.1, Direction: model.DirectionStable},
		},
		MaxItems: 10,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testSummary()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	text := received["text"]
	if text == "" {
		t.Fatal("text should not be empty")
	}
	if !strings.Contains(text, "8542") {
		t.Fatalf("text should name the meaningful product: %q", text)
	}
	if strings.Contains(text, "8471") {
		t.Fatalf("text should omit stable products: %q", text)
	}
	if !strings.Contains(text, "Meaningful breaks: 1 of 2") {
		t.Fatalf("text should count meaningful breaks: %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testSummary()); err == nil {
		t.Fatal("ok=false should error")
	}
}

func TestTelegramNotifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testSummary()); err == nil {
		t.Fatal("5xx should error")
	}
}

func TestRenderSummaryTruncation(t *testing.T) {
	summary := testSummary()
	summary.Results = []model.BreakpointResult{
		{ProductCode: "A", SlopeChange: -3, Direction: model.DirectionDeclining, IsMeaningful: true},
		{ProductCode: "B", SlopeChange: -2, Direction: model.DirectionDeclining, IsMeaningful: true},
		{ProductCode: "C", SlopeChange: -1, Direction: model.DirectionDeclining, IsMeaningful: true},
	}
	summary.MaxItems = 2

	text := renderSummary(summary)
	if !strings.Contains(text, "- A:") || !strings.Contains(text, "- B:") {
		t.Fatalf("first two breaks should be listed: %q", text)
	}
	if strings.Contains(text, "- C:") {
		t.Fatalf("third break should be truncated: %q", text)
	}
	if !strings.Contains(text, "and 1 more") {
		t.Fatalf("truncation note missing: %q", text)
	}
}
