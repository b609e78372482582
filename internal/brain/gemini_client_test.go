package brain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"tech-ai-bot/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newGeminiTestBackend(t *testing.T, handler http.HandlerFunc) *GeminiBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	return &GeminiBackend{Client: client, Models: []string{"gemini-2.5-flash"}}
}

func TestGeminiJoinsTextParts(t *testing.T) {
	b := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[
			{"text":"weighing the headline","thought":true},
			{"text":"New chips ship today. "},
			{"text":"Builders get faster training."}
		]}}]}`))
	})

	text, err := b.Generate(context.Background(), ports.Prompt{System: "be brief", User: "write", Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "New chips ship today. Builders get faster training.", text)
}

func TestGeminiEmptyCandidates(t *testing.T) {
	b := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := b.Generate(context.Background(), ports.Prompt{User: "write"})
	require.Error(t, err)
	assert.Equal(t, ports.KindInvalid, ports.KindOf(err))
}
