package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

func TestSummarize_Success(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  - point one\n- point two  "}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"}, nil)
	out, err := c.Summarize(context.Background(), "the transcript", summary.QA)
	require.NoError(t, err)
	require.Equal(t, "- point one\n- point two", out)

	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, DefaultModel, got.Model)
	require.Equal(t, DefaultTemperature, got.Temperature)
	require.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, summary.QA.Prompt(), got.Messages[0].Content)
	require.Equal(t, "user", got.Messages[1].Role)
	require.Equal(t, "the transcript", got.Messages[1].Content)
}

func TestSummarize_ExplicitZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	zero := 0.0
	c := New(Config{BaseURL: srv.URL, APIKey: "sk-test", Temperature: &zero}, nil)
	_, err := c.Summarize(context.Background(), "t", summary.Paragraph)
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	require.Equal(t, 0.0, got["temperature"])
}

func TestSummarize_NoKey(t *testing.T) {
	_, err := New(Config{}, nil).Summarize(context.Background(), "x", summary.Paragraph)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}

func TestSummarize_ProviderError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error message", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, "AI API error: Incorrect API key provided"},
		{"status text", http.StatusTooManyRequests, `not json`, "AI API error: Too Many Requests"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "AI API error: empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{BaseURL: srv.URL, APIKey: "sk-x"}, nil).Summarize(context.Background(), "x", summary.Outline)
			require.True(t, errors.Is(err, errors.ErrAIAPI), "err = %v", err)
			rErr, _ := errors.As(err)
			require.Equal(t, tt.wantMsg, rErr.Message)
		})
	}
}

func TestSummarize_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "sk-x", RequestsPerMinute: 1}, nil)
	_, err := c.Summarize(context.Background(), "x", summary.Timeline)
	require.NoError(t, err)

	// The second call has to wait a full minute for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Summarize(ctx, "x", summary.Timeline)
	require.True(t, errors.Is(err, errors.ErrCancelled), "err = %v", err)
}
