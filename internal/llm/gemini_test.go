package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGeminiGenerate(t *testing.T) {
	var gotKey string
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "SELECT "}, {"text": "1"}},
				}},
			},
		})
	}))
	defer ts.Close()

	p, err := NewGeminiProvider(GeminiConfig{BaseURL: ts.URL, APIKey: "g-key", Model: "gemini-2.0-flash-exp"})
	require.NoError(t, err)

	got, err := p.Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", got)
	require.Equal(t, "g-key", gotKey)
	require.Equal(t, "/v1beta/models/gemini-2.0-flash-exp:generateContent", gotPath)
}

func TestGeminiGenerateRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "ok"}}}},
			},
		})
	}))
	defer ts.Close()

	p, err := NewGeminiProvider(GeminiConfig{BaseURL: ts.URL, APIKey: "g-key", Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := p.Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.EqualValues(t, 3, calls.Load())
}

func TestGeminiGenerateEmptyCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer ts.Close()

	p, err := NewGeminiProvider(GeminiConfig{BaseURL: ts.URL, APIKey: "g-key"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "hello")
	require.ErrorContains(t, err, "empty candidates")
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(GeminiConfig{})
	require.Error(t, err)
}
