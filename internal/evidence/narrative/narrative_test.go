package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAI struct {
	mu      sync.Mutex
	answers map[string]string
	asked   []string
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.asked = append(f.asked, req.Model)
	answer, ok := f.answers[req.Model]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": answer},
			"finish_reason": "stop",
		}},
	})
}

func newServer(t *testing.T, answers map[string]string) (*fakeOpenAI, string) {
	t.Helper()
	fake := &fakeOpenAI{answers: answers}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL + "/v1"
}

func TestNewOpenAI_WithoutKeyIsNil(t *testing.T) {
	assert.Nil(t, NewOpenAI(" ", "", nil, 0, nil))
}

func TestNarrate_FallsBackToNextModel(t *testing.T) {
	fake, url := newServer(t, map[string]string{"second": "  Approve.  "})
	n := NewOpenAI("key", url, []string{"first", "second"}, time.Second, nil)

	text, err := n.Narrate(context.Background(), Subject{Document: "12345678000190", DocumentType: "CNPJ"})
	require.NoError(t, err)
	assert.Equal(t, "Approve.", text)
	assert.Equal(t, []string{"first", "second"}, fake.asked)
}

func TestNarrate_EmptyAnswerCountsAsFailure(t *testing.T) {
	fake, url := newServer(t, map[string]string{"first": " ", "second": "Review."})
	n := NewOpenAI("key", url, []string{"first", "second"}, time.Second, nil)

	text, err := n.Narrate(context.Background(), Subject{})
	require.NoError(t, err)
	assert.Equal(t, "Review.", text)
	assert.Len(t, fake.asked, 2)
}

func TestNarrate_AllModelsFail(t *testing.T) {
	_, url := newServer(t, nil)
	n := NewOpenAI("key", url, []string{"first", "second"}, time.Second, nil)

	_, err := n.Narrate(context.Background(), Subject{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestPrompt(t *testing.T) {
	p := Prompt(Subject{
		Document:       "12345678909",
		DocumentType:   "CPF",
		RiskLevel:      "HIGH",
		TotalSanctions: 2,
	})
	assert.Contains(t, p, "Document: 12345678909 (CPF)")
	assert.Contains(t, p, "Entity: CPF 12345678909")
	assert.Contains(t, p, "Registration status: N/A")
	assert.Contains(t, p, "Computed risk level: HIGH")
	assert.Contains(t, p, "Total sanctions found: 2")
}
