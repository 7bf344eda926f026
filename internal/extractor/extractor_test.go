package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/pkg/circuitbreaker"
	"jobmail/pkg/config"
)

type stubProvider struct {
	calls  atomic.Int32
	prompt string
	out    string
	err    error
	delay  time.Duration
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	s.prompt = prompt
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.out, s.err
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Your interview with Acme")

	assert.True(t, strings.HasSuffix(p, "MM-DD-YYYY: Your interview with Acme"))
	assert.Contains(t, p, "company, position (if there is a comma in this field, omit it), interview type")
	assert.Contains(t, p, "interviewer(s), submission date, and recent date")
	assert.Contains(t, p, "please fill with (empty)")
}

func TestExtractReturnsRawResult(t *testing.T) {
	stub := &stubProvider{out: "Acme, Backend Engineer, phone, no, passed, Jane Doe, 01-02-2024, 01-10-2024"}
	e := New(stub, zap.NewNop())

	got, err := e.Extract(context.Background(), "body text")
	require.NoError(t, err)
	assert.Equal(t, stub.out, got)
	assert.Equal(t, BuildPrompt("body text"), stub.prompt)
}

func TestExtractWrapsProviderError(t *testing.T) {
	e := New(&stubProvider{err: errors.New("503 upstream")}, zap.NewNop())

	_, err := e.Extract(context.Background(), "body")
	assert.ErrorIs(t, err, model.ErrExtraction)
	assert.Contains(t, err.Error(), "503 upstream")
}

func TestExtractEmptyCompletionFails(t *testing.T) {
	e := New(&stubProvider{out: ""}, zap.NewNop())

	_, err := e.Extract(context.Background(), "body")
	assert.ErrorIs(t, err, model.ErrExtraction)
}

func TestExtractTimeout(t *testing.T) {
	e := New(&stubProvider{out: "late", delay: time.Second}, zap.NewNop(), WithTimeout(20*time.Millisecond))

	_, err := e.Extract(context.Background(), "body")
	assert.ErrorIs(t, err, model.ErrExtraction)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractBreakerFailsFast(t *testing.T) {
	stub := &stubProvider{err: errors.New("down")}
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test", FailureThreshold: 2, Timeout: time.Minute})
	e := New(stub, zap.NewNop(), WithBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := e.Extract(context.Background(), "body")
		require.Error(t, err)
	}

	_, err := e.Extract(context.Background(), "body")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.ErrorIs(t, err, model.ErrExtraction)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestOpenAIProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		assert.Equal(t, []chatMessage{{Role: "user", Content: "the prompt"}}, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Acme, SRE  \n"}}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
	out, err := p.Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Acme, SRE", out)
	assert.Equal(t, "openai/gpt-3.5-turbo", p.Name())
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http status", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "status 429"},
		{"api error", http.StatusOK, `{"error":{"message":"bad key"}}`, "bad key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "empty response"},
		{"bad json", http.StatusOK, `not json`, "parsing response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewOpenAIProvider(config.LLMConfig{APIKey: "k", BaseURL: server.URL})
			_, err := p.Complete(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGeminiProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Acme, SRE, (empty), (empty), (empty), (empty), (empty), (empty)"}]}}]}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), config.LLMConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Acme, SRE, (empty), (empty), (empty), (empty), (empty), (empty)", out)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), config.LLMConfig{Provider: "claude", APIKey: "k"})
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)

	p, err := NewProvider(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", p.Name())
}
