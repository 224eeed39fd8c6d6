package httpchannel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattlebot/wattle/pkg/domain"
)

// MockEngine for testing
type MockEngine struct {
	HandleFunc func(ctx context.Context, ev domain.Event) ([]domain.Envelope, error)
	ResetCalls []string
}

func (m *MockEngine) Handle(ctx context.Context, ev domain.Event) ([]domain.Envelope, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, ev)
	}
	return []domain.Envelope{domain.NewTextEnvelope("Hello " + ev.Text)}, nil
}

func (m *MockEngine) Reset(ctx context.Context, subscriberID string) error {
	m.ResetCalls = append(m.ResetCalls, subscriberID)
	return nil
}

// MockSessions for testing
type MockSessions struct {
	sessions map[string]*domain.Session
}

func (m *MockSessions) Load(ctx context.Context, subscriberID string) (*domain.Session, error) {
	if sess, ok := m.sessions[subscriberID]; ok {
		return sess, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessions) Delete(ctx context.Context, subscriberID string) error {
	delete(m.sessions, subscriberID)
	return nil
}

func (m *MockSessions) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func postEvent(t *testing.T, handler http.Handler, ev domain.Event) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/events", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleEvent(t *testing.T) {
	handler := NewHandler(&MockEngine{}, &MockSessions{})

	w := postEvent(t, handler, domain.Event{
		SubscriberID: "sub-1",
		Type:         domain.IncomingMessage,
		Text:         "world",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Envelopes, 1)
	assert.Equal(t, "Hello world", resp.Envelopes[0].Text.Text)
}

func TestHandleEvent_Validation(t *testing.T) {
	handler := NewHandler(&MockEngine{}, &MockSessions{})

	// Missing subscriber id
	w := postEvent(t, handler, domain.Event{Type: domain.IncomingMessage, Text: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Oversized text
	big := make([]byte, maxTextBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	w = postEvent(t, handler, domain.Event{SubscriberID: "sub-1", Type: domain.IncomingMessage, Text: string(big)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body
	req := httptest.NewRequest("POST", "/v1/events", bytes.NewReader([]byte("{not json")))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_EngineError(t *testing.T) {
	engine := &MockEngine{
		HandleFunc: func(ctx context.Context, ev domain.Event) ([]domain.Envelope, error) {
			return nil, errors.New("boom")
		},
	}
	handler := NewHandler(engine, &MockSessions{})

	w := postEvent(t, handler, domain.Event{SubscriberID: "sub-1", Type: domain.IncomingMessage, Text: "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleEvent_EmptyBatch(t *testing.T) {
	engine := &MockEngine{
		HandleFunc: func(ctx context.Context, ev domain.Event) ([]domain.Envelope, error) {
			return nil, nil
		},
	}
	handler := NewHandler(engine, &MockSessions{})

	w := postEvent(t, handler, domain.Event{SubscriberID: "sub-1", Type: domain.IncomingMessage, Text: "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	// No match still answers with a well-formed empty batch.
	assert.JSONEq(t, `{"envelopes":[]}`, w.Body.String())
}

func TestSessionEndpoints(t *testing.T) {
	sessions := &MockSessions{sessions: map[string]*domain.Session{
		"sub-1": domain.NewSession("sub-1"),
	}}
	engine := &MockEngine{}
	handler := NewHandler(engine, sessions)

	// List
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sub-1")

	// Get
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/sessions/sub-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, "sub-1", sess.SubscriberID)

	// Get missing
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/sessions/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Reset
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1/sessions/sub-1/reset", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"sub-1"}, engine.ResetCalls)

	// Delete
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/sessions/sub-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/sessions/sub-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndCORS(t *testing.T) {
	handler := NewHandler(&MockEngine{}, &MockSessions{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	// Preflight
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/v1/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
