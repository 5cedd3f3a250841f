// Package reporting delivers screening summaries to external channels.
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

// Summary captures the outcome of one screening pass.
type Summary struct {
	Metric      string
	PartnerCode string
	CutoffYear  int
	Threshold   float64
	SourceFile  string
	Results     []model.BreakpointResult
	MaxItems    int
}

// Meaningful filters the results down to the flagged breaks.
func (s Summary) Meaningful() []model.BreakpointResult {
	meaningful := make([]model.BreakpointResult, 0, len(s.Results))
	for _, r := range s.Results {
		if r.IsMeaningful {
			meaningful = append(meaningful, r)
		}
	}
	return meaningful
}

// Notifier delivers a screening summary.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// TelegramNotifier pushes summaries through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram delivery channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "report_telegram").Logger(),
	}
}

// Notify posts the summary text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, summary Summary) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderSummary(summary),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("metric", summary.Metric).
		Int("cutoff_year", summary.CutoffYear).
		Int("results", len(summary.Results)).
		Msg("screening summary delivered")
	return nil
}

func renderSummary(summary Summary) string {
	meaningful := summary.Meaningful()

	builder := strings.Builder{}
	builder.WriteString("[Trade Breakpoint Screening]\n")
	builder.WriteString(fmt.Sprintf("Metric: %s\n", summary.Metric))
	if summary.PartnerCode != "" {
		builder.WriteString(fmt.Sprintf("Partner: %s\n", summary.PartnerCode))
	}
	builder.WriteString(fmt.Sprintf("Cutoff: %d (threshold %.2f)\n", summary.CutoffYear, summary.Threshold))
	if summary.SourceFile != "" {
		builder.WriteString(fmt.Sprintf("Source: %s\n", summary.SourceFile))
	}
	builder.WriteString(fmt.Sprintf("Meaningful breaks: %d of %d products\n", len(meaningful), len(summary.Results)))

	limit := summary.MaxItems
	if limit <= 0 || limit > len(meaningful) {
		limit = len(meaningful)
	}
	for _, r := range meaningful[:limit] {
		label := r.ProductCode
		if r.ProductName != "" {
			label = fmt.Sprintf("%s (%s)", r.ProductName, r.ProductCode)
		}
		builder.WriteString(fmt.Sprintf("- %s: slope change %+.4f, %s\n", label, r.SlopeChange, r.Direction))
	}
	if len(meaningful) > limit {
		builder.WriteString(fmt.Sprintf("and %d more\n", len(meaningful)-limit))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
