package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/model"
)

func anthropicServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "claude-test", body.Model)
			assert.Contains(t, body.Messages[0].Content, "Burst pipe")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"type":"overloaded_error","message":"try later"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":    "msg_1",
			"model": "claude-test",
			"content": []map[string]string{
				{"type": "text", "text": text},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTriager(t *testing.T, url string) *Triager {
	t.Helper()
	p, err := NewProvider("anthropic:claude-test", "test-key", nil)
	require.NoError(t, err)
	return New(WithEndpoint(p, url), 5*time.Second, nil, zap.NewNop())
}

func request() *model.MaintenanceRequest {
	return &model.MaintenanceRequest{
		Base:        model.Base{ID: "req-1"},
		Title:       "Burst pipe",
		Description: "Water everywhere in the kitchen",
	}
}

func TestTriage(t *testing.T) {
	reply := "```json\n" + `{"classification":"plumbing leak","priority":"Emergency","summary":"Burst pipe in kitchen","suggested_action":"Shut off the water and call a plumber","suggested_category":"plumbing"}` + "\n```"
	srv := anthropicServer(t, http.StatusOK, reply)

	a, err := newTestTriager(t, srv.URL).Triage(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "plumbing leak", a.Classification)
	assert.Equal(t, "emergency", a.Priority)
	assert.Equal(t, "plumbing", a.SuggestedCategory)
}

func TestTriage_ProviderError(t *testing.T) {
	srv := anthropicServer(t, http.StatusServiceUnavailable, "")

	_, err := newTestTriager(t, srv.URL).Triage(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
}

func TestTriage_InvalidReply(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{"priority":"whenever"}`)

	_, err := newTestTriager(t, srv.URL).Triage(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain", `{"priority":"low","summary":"s"}`, false},
		{"fenced", "```\n{\"priority\":\"high\"}\n```", false},
		{"prose around", "Here you go: {\"priority\":\"medium\"} hope it helps", false},
		{"not json", "no idea", true},
		{"bad priority", `{"priority":"urgent"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAnnotation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider("claude", "key", nil)
	assert.Error(t, err)

	_, err = NewProvider("openai:gpt", "key", nil)
	assert.Error(t, err)

	_, err = NewProvider("anthropic:claude", "", nil)
	assert.Error(t, err)

	p, err := NewProvider("anthropic:claude", "key", nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}
