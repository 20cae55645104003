// Package triage asks an LLM to classify and prioritise maintenance requests.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/metrics"
	"github.com/beesaferoot/tenantly/internal/model"
)

const systemPrompt = `You triage maintenance requests for rental properties.
Reply with a single JSON object and nothing else, using these keys:
  "classification": a short label for the problem, such as "plumbing leak"
  "priority": one of "emergency", "high", "medium", "low"
  "summary": one sentence describing the problem
  "suggested_action": the next step the landlord should take
  "suggested_category": one of "plumbing", "electrical", "heating", "appliance", "structural", "pest", "general"
Use "emergency" only for risks to safety or severe property damage.`

// Triager annotates maintenance requests using a Provider.
type Triager struct {
	provider Provider
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func New(provider Provider, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Triager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Triager{provider: provider, timeout: timeout, metrics: m, logger: logger}
}

// Triage returns the model's assessment of req.
func (t *Triager) Triage(ctx context.Context, req *model.MaintenanceRequest) (*model.TriageAnnotation, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := t.provider.Complete(ctx, &Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt(req),
		Temperature:  0.2,
	})
	if err != nil {
		t.metrics.RecordTriage("error")
		return nil, fmt.Errorf("triage request %s: %w", req.ID, err)
	}

	a, err := parseAnnotation(resp.Content)
	if err != nil {
		t.metrics.RecordTriage("invalid")
		return nil, fmt.Errorf("triage request %s: %w", req.ID, err)
	}

	t.metrics.RecordTriage("ok")
	t.logger.Info("maintenance request triaged",
		zap.String("request_id", req.ID),
		zap.String("model", resp.Model),
		zap.String("priority", a.Priority),
		zap.Duration("duration", time.Since(start)),
	)
	return a, nil
}

func userPrompt(req *model.MaintenanceRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	if req.PhotoURL != nil && *req.PhotoURL != "" {
		b.WriteString("A photo was attached.\n")
	}
	return b.String()
}

// parseAnnotation decodes the model's JSON reply, tolerating a surrounding
// markdown code fence.
func parseAnnotation(content string) (*model.TriageAnnotation, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}

	var a model.TriageAnnotation
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("parsing triage JSON (%s): %w", truncate(content, 200), err)
	}

	a.Priority = strings.ToLower(strings.TrimSpace(a.Priority))
	if !model.Priority(a.Priority).Valid() {
		return nil, fmt.Errorf("invalid priority %q", a.Priority)
	}
	return &a, nil
}
