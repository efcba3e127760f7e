package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formula "github.com/njchilds90/goformula"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate func(*formula.Config)) *gin.Engine {
	t.Helper()
	cfg := formula.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))).router()
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServer_Tool(t *testing.T) {
	router := newTestServer(t, nil)
	w := performRequest(router, http.MethodPost, "/tool",
		`{"tool":"collect","params":{"expr":{"type":"product","factors":[{"type":"variable","name":"x"},{"type":"variable","name":"x"}]}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp formula.ToolResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, "{x}^{2}", resp.String)

	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestServer_Tool_ErrorInBody(t *testing.T) {
	router := newTestServer(t, nil)
	w := performRequest(router, http.MethodPost, "/tool", `{"tool":"nope","params":{}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unknown tool")
}

func TestServer_Tool_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"tool":`},
		{"unknown field", `{"tool":"print","params":{},"extra":1}`},
		{"trailing data", `{"tool":"print","params":{}} {}`},
	}
	router := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodPost, "/tool", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestServer_Tool_BodyTooLarge(t *testing.T) {
	router := newTestServer(t, func(c *formula.Config) { c.Server.MaxBodyBytes = 1024 })
	body := `{"tool":"print","params":{"pad":"` + strings.Repeat("a", 2048) + `"}}`
	w := performRequest(router, http.MethodPost, "/tool", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_RateLimit(t *testing.T) {
	router := newTestServer(t, func(c *formula.Config) {
		c.Server.RateLimit = 0.001
		c.Server.Burst = 1
	})
	body := `{"tool":"functions","params":{}}`
	assert.Equal(t, http.StatusOK, performRequest(router, http.MethodPost, "/tool", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, performRequest(router, http.MethodPost, "/tool", body).Code)
}

func TestServer_RequestIDPropagated(t *testing.T) {
	router := newTestServer(t, nil)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestServer_SchemaAndHealth(t *testing.T) {
	router := newTestServer(t, nil)

	w := performRequest(router, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, formula.MCPToolSpec(), w.Body.String())

	w = performRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_Metrics(t *testing.T) {
	router := newTestServer(t, nil)
	performRequest(router, http.MethodPost, "/tool", `{"tool":"functions","params":{}}`)
	w := performRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "formula_tool_calls_total")
}

func TestParseBindings(t *testing.T) {
	got, err := parseBindings([]string{"x=2", "y=-0.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 2, "y": -0.5}, got)

	_, err = parseBindings([]string{"x"})
	assert.Error(t, err)
	_, err = parseBindings([]string{"x=abc"})
	assert.Error(t, err)
}
