package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"jobmail/internal/handler"
	"jobmail/internal/model"
	"jobmail/internal/service"
	"jobmail/pkg/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubServices struct{ owner string }

func (s *stubServices) Link(context.Context, string) (*service.LinkResult, error) {
	return &service.LinkResult{OwnerID: "u1"}, nil
}
func (s *stubServices) CheckUser(context.Context, string) (bool, error) { return false, nil }
func (s *stubServices) FetchAndIngest(context.Context, string) (*model.BatchReport, error) {
	return model.NewBatchReport("u1", time.Now()), nil
}
func (s *stubServices) IngestLatest(context.Context, string, int) (*model.BatchReport, error) {
	return model.NewBatchReport("u1", time.Now()), nil
}
func (s *stubServices) IngestEmails(_ context.Context, owner string, _ map[string]service.EmailPayload) (*model.BatchReport, error) {
	return model.NewBatchReport(owner, time.Now()), nil
}
func (s *stubServices) InsertLine(_ context.Context, owner, _ string) (model.ApplicationRecord, error) {
	s.owner = owner
	return model.ApplicationRecord{OwnerID: owner}, nil
}
func (s *stubServices) Get(context.Context, string) (*model.Statistics, model.AppsByResult, error) {
	return nil, nil, model.ErrNotFound
}
func (s *stubServices) ExportCSV(context.Context, string) (string, error) {
	return "", model.ErrNotFound
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type conn bool

func (c conn) IsConnected() bool { return bool(c) }

func newTestRouter(svc *stubServices, db Pinger, pub ConnChecker) *Router {
	return NewRouter(Deps{
		Auth:   handler.NewAuthHandler(svc, zap.NewNop()),
		Ingest: handler.NewIngestHandler(svc, zap.NewNop()),
		Data:   handler.NewDataHandler(svc, svc, zap.NewNop()),
		VerifySession: func(token string) (string, error) {
			if token == "good" {
				return "session-owner", nil
			}
			return "", errors.New("bad token")
		},
		DB:        db,
		Publisher: pub,
	})
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	r := newTestRouter(&stubServices{}, pinger{}, conn(true))
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	r = newTestRouter(&stubServices{}, pinger{err: errors.New("down")}, conn(true))
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	r = newTestRouter(&stubServices{}, pinger{}, conn(false))
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&stubServices{}, pinger{}, conn(true))
	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestTraceHeader(t *testing.T) {
	r := newTestRouter(&stubServices{}, pinger{}, conn(true))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	assert.Equal(t, "abc123", serve(r, req).Header().Get(trace.HeaderName))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, w.Header().Get(trace.HeaderName), 32)
}

func TestSessionMiddleware(t *testing.T) {
	svc := &stubServices{}
	r := newTestRouter(svc, pinger{}, conn(true))

	post := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/insert-data", strings.NewReader(`{"message":"a,b,c,d,e,f,g,h"}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		return serve(r, req)
	}

	assert.Equal(t, http.StatusUnauthorized, post("bad").Code)

	assert.Equal(t, http.StatusOK, post("good").Code)
	assert.Equal(t, "session-owner", svc.owner)

	svc.owner = ""
	assert.Equal(t, http.StatusOK, post("").Code)
	assert.Empty(t, svc.owner)
}
