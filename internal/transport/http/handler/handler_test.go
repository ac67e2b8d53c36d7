package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-slides/internal/app"
	"gopherai-slides/internal/model"
	"gopherai-slides/internal/scrape"
	"gopherai-slides/internal/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPresentations struct {
	lastInput app.GenerateInput
	async     bool
	err       error
	stored    map[string]*model.Presentation
}

func (s *stubPresentations) Generate(_ context.Context, in app.GenerateInput) (*model.Presentation, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &model.Presentation{ID: "p1", Title: "Deck", Content: "# Deck", Status: model.StatusCompleted}, nil
}

func (s *stubPresentations) GenerateAsync(_ context.Context, in app.GenerateInput) (*model.Presentation, error) {
	s.lastInput = in
	s.async = true
	if s.err != nil {
		return nil, s.err
	}
	return &model.Presentation{ID: "p2", Status: model.StatusPending}, nil
}

func (s *stubPresentations) Get(_ context.Context, id string) (*model.Presentation, error) {
	if p, ok := s.stored[id]; ok {
		return p, nil
	}
	return nil, app.ErrPresentationNotFound
}

func (s *stubPresentations) List(context.Context, int) ([]model.Presentation, error) {
	out := make([]model.Presentation, 0, len(s.stored))
	for _, p := range s.stored {
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubPresentations) Delete(_ context.Context, id string) error {
	if _, ok := s.stored[id]; !ok {
		return app.ErrPresentationNotFound
	}
	delete(s.stored, id)
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func presentationRouter(svc PresentationService, maxUpload int64) *gin.Engine {
	h := NewPresentationHandler(svc, maxUpload)
	r := gin.New()
	r.POST("/presentations", h.Create)
	r.GET("/presentations", h.List)
	r.GET("/presentations/:id", h.Get)
	r.DELETE("/presentations/:id", h.Delete)
	return r
}

func TestCreatePresentationJSON(t *testing.T) {
	svc := &stubPresentations{}
	r := presentationRouter(svc, 0)

	body := `{"prompt":"solar power","urls":["https://a.example, https://b.example"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/presentations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, 0, env.Code)
	var p model.Presentation
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Deck", p.Title)
	assert.Equal(t, "solar power", svc.lastInput.Prompt)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, svc.lastInput.URLs)
}

func multipartBody(t *testing.T, fields map[string][]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreatePresentationMultipartAsync(t *testing.T) {
	svc := &stubPresentations{}
	r := presentationRouter(svc, 0)

	body, ct := multipartBody(t,
		map[string][]string{"prompt": {"deck"}, "urls": {"https://a.example", "https://b.example"}, "async": {"true"}},
		map[string][]byte{"notes.md": []byte("# Notes")},
	)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/presentations", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, svc.async)
	assert.Contains(t, string(decode(t, w).Data), `"id":"p2"`)
	require.Len(t, svc.lastInput.Documents, 1)
	assert.Equal(t, "notes.md", svc.lastInput.Documents[0].Name)
	assert.Equal(t, []byte("# Notes"), svc.lastInput.Documents[0].Data)
	assert.Len(t, svc.lastInput.URLs, 2)
}

func TestCreatePresentationRejectsLargeUpload(t *testing.T) {
	svc := &stubPresentations{}
	r := presentationRouter(svc, 8)

	body, ct := multipartBody(t, nil, map[string][]byte{"big.txt": []byte("more than eight bytes")})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/presentations", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, svc.lastInput.Documents)
}

func TestCreatePresentationErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid", err: app.ErrInvalidInput, status: http.StatusBadRequest},
		{name: "no content", err: &app.StageError{Stage: app.StageDrafting, Err: app.ErrNoContent}, status: http.StatusUnprocessableEntity},
		{
			name:   "bad document",
			err:    &source.SourceError{Kind: source.KindDocument, Source: "x.exe", Err: source.ErrUnsupportedType},
			status: http.StatusBadRequest,
		},
		{name: "backend", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := presentationRouter(&stubPresentations{err: tt.err}, 0)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/presentations", strings.NewReader(`{"prompt":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEqual(t, 0, decode(t, w).Code)
		})
	}
}

func TestGetAndDeletePresentation(t *testing.T) {
	svc := &stubPresentations{stored: map[string]*model.Presentation{
		"p1": {ID: "p1", Title: "Deck", Status: model.StatusCompleted, Images: []model.PresentationImage{{Position: 0, URL: "/assets/a.png"}}},
	}}
	r := presentationRouter(svc, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presentations/p1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), "/assets/a.png")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/presentations/p1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presentations/p1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubAnswerer struct {
	answer string
	err    error
}

func (s stubAnswerer) Answer(context.Context, string, string) (string, error) {
	return s.answer, s.err
}

func TestAskQuestion(t *testing.T) {
	tests := []struct {
		name   string
		qa     stubAnswerer
		body   string
		status int
	}{
		{name: "answered", qa: stubAnswerer{answer: "42"}, body: `{"presentationId":"p1","question":"why?"}`, status: http.StatusOK},
		{name: "missing question", qa: stubAnswerer{}, body: `{"presentationId":"p1"}`, status: http.StatusBadRequest},
		{name: "no knowledge base", qa: stubAnswerer{err: app.ErrNoKnowledgeBase}, body: `{"presentationId":"p1","question":"q"}`, status: http.StatusNotFound},
		{name: "backend", qa: stubAnswerer{err: errors.New("down")}, body: `{"presentationId":"p1","question":"q"}`, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/question", NewQuestionHandler(tt.qa).Ask)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/question", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"answer":"42"}`, string(decode(t, w).Data))
			}
		})
	}
}

type stubScraper struct {
	text string
	err  error
}

func (s stubScraper) Scrape(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestScrape(t *testing.T) {
	r := gin.New()
	r.POST("/scrape", NewScrapeHandler(stubScraper{text: "page text"}).Scrape)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{"url":"https://a.example"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":"page text"}`, string(decode(t, w).Data))

	r = gin.New()
	r.POST("/scrape", NewScrapeHandler(stubScraper{err: scrape.ErrInvalidURL}).Scrape)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{"url":"ftp://x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler("slides", "test", time.Now(), map[string]Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/healthz", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		App          string                      `json:"app"`
		Dependencies map[string]dependencyStatus `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "slides", body.App)
	assert.True(t, body.Dependencies["database"].OK)
	assert.False(t, body.Dependencies["redis"].OK)
	assert.Equal(t, "connection refused", body.Dependencies["redis"].Message)
}

func TestCleanURLs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, cleanURLs([]string{" a ,b", "", "c\n"}))
	assert.Nil(t, cleanURLs(nil))
}
