package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"NewsStream/internal/broadcast"
	"NewsStream/internal/buffer"
	"NewsStream/internal/domain"
	"NewsStream/internal/infrastructure/storage"
)

type fakeStore struct {
	analysis *domain.AnalysisResult
	err      error
	clearErr error
	cleared  bool
}

func (f *fakeStore) GetAnalysis(context.Context, string) (*domain.AnalysisResult, error) {
	return f.analysis, f.err
}

func (f *fakeStore) Clear(context.Context) error {
	f.cleared = true
	return f.clearErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(buf *buffer.Buffer, store Store, hub *broadcast.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(buf, store, hub, quietLogger())
	return NewRouter(h, []string{"http://localhost:3000"})
}

func articles(n int) []domain.Article {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Article, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = domain.Article{ID: id, Title: "t", URL: "https://example.com/" + id, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestGetArticles_Initializing(t *testing.T) {
	r := newTestRouter(buffer.New(15, 15), &fakeStore{}, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/articles", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res ArticlesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "initializing", res.Status)
	assert.Equal(t, 15, res.Required)
	assert.Equal(t, 0, len(res.Articles))
	assert.NotEqual(t, "", res.Timestamp)
}

func TestGetArticles_Partial(t *testing.T) {
	buf := buffer.New(15, 15)
	buf.Seed(articles(4))
	r := newTestRouter(buf, &fakeStore{}, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/articles", nil))

	assert.Equal(t, http.StatusPartialContent, w.Code)

	var res ArticlesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "partial", res.Status)
	assert.Equal(t, 4, res.Current)
	assert.Equal(t, "Service has only 4 of 15 required articles", res.Message)
	assert.Equal(t, "d", res.Articles[0].ID)
}

func TestGetArticles_Full(t *testing.T) {
	buf := buffer.New(3, 3)
	buf.Seed(articles(5))
	r := newTestRouter(buf, &fakeStore{}, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/articles", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var res ArticlesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 3, len(res.Articles))
}

func TestClearCache_ResetsBuffer(t *testing.T) {
	buf := buffer.New(15, 15)
	buf.Seed(articles(2))
	store := &fakeStore{}
	r := newTestRouter(buf, store, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clear-cache", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, store.cleared)
	assert.Equal(t, false, buf.Ready())
	assert.Equal(t, 0, buf.Len())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/articles", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClearCache_StoreError(t *testing.T) {
	buf := buffer.New(15, 15)
	buf.Seed(articles(2))
	r := newTestRouter(buf, &fakeStore{clearErr: errors.New("down")}, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clear-cache", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, buf.Len())
}

func TestGetHealth(t *testing.T) {
	buf := buffer.New(15, 15)
	buf.Seed(articles(3))
	hub := broadcast.NewHub(quietLogger())
	hub.Register()
	r := newTestRouter(buf, &fakeStore{}, hub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var res HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, 3, res.BufferSize)
	assert.Equal(t, 1, res.ConnectedClients)
}

func TestGetAnalysis(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		store *fakeStore
		code  int
	}{
		{"found", "/analysis/abc", &fakeStore{analysis: &domain.AnalysisResult{ArticleID: "abc", Analysis: "ok"}}, http.StatusOK},
		{"missing", "/analysis/abc", &fakeStore{err: storage.ErrNotFound}, http.StatusNotFound},
		{"store error", "/analysis/abc", &fakeStore{err: errors.New("boom")}, http.StatusInternalServerError},
		{"no id", "/analysis", &fakeStore{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(buffer.New(15, 15), tt.store, broadcast.NewHub(quietLogger()))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestGetAnalysis_Body(t *testing.T) {
	store := &fakeStore{analysis: &domain.AnalysisResult{ArticleID: "abc", Analysis: "Risk: Low", Model: "m", Version: "1.0"}}
	r := newTestRouter(buffer.New(15, 15), store, broadcast.NewHub(quietLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analysis/abc", nil))

	var res AnalysisResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "abc", res.ArticleID)
	assert.Equal(t, "Risk: Low", res.Analysis.Analysis)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(buffer.New(15, 15), &fakeStore{}, broadcast.NewHub(quietLogger()))

	req := httptest.NewRequest(http.MethodOptions, "/articles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func readEvent(t *testing.T, reader *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &payload); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return payload
	}
}

func TestStream_InitialThenBroadcastThenShutdown(t *testing.T) {
	buf := buffer.New(15, 15)
	buf.Seed(articles(2))
	hub := broadcast.NewHub(quietLogger())
	srv := httptest.NewServer(newTestRouter(buf, &fakeStore{}, hub))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	initial := readEvent(t, reader)
	assert.Equal(t, "initial", initial["type"])
	assert.Equal(t, 2, len(initial["articles"].([]any)))
	status := initial["buffer_status"].(map[string]any)
	assert.Equal(t, float64(15), status["required"])
	assert.Equal(t, float64(2), status["current"])

	deadline := time.Now().Add(time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	hub.Broadcast(domain.ArticleEvent(domain.Article{ID: "new", Timestamp: time.Now()}))
	ev := readEvent(t, reader)
	assert.Equal(t, "article", ev["type"])
	assert.Equal(t, "new", ev["data"].(map[string]any)["id"])
	assert.NotEqual(t, nil, ev["buffer_status"])
	assert.NotEqual(t, nil, ev["timestamp"])

	hub.Broadcast(domain.AnalysisEvent(domain.AnalysisResult{ArticleID: "new", Analysis: "x"}))
	ev = readEvent(t, reader)
	assert.Equal(t, "analysis", ev["type"])
	assert.Equal(t, "new", ev["articleId"])

	hub.Shutdown()
	ev = readEvent(t, reader)
	assert.Equal(t, "shutdown", ev["type"])
	assert.Equal(t, "Server shutting down", ev["message"])
}
