package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/middleware"
	"github.com/tg-chatstat-go/internal/services/storage"
)

type fakeUsers struct {
	id  int64
	err error
}

func (f *fakeUsers) IDByUsername(ctx context.Context, username string) (int64, error) {
	return f.id, f.err
}

type fakeMessages struct {
	texts []string
	err   error
}

func (f *fakeMessages) LastUserTexts(ctx context.Context, userID int64, limit int) ([]string, error) {
	return f.texts, f.err
}

type fakeAnalyzer struct {
	result string
	err    error
	input  string
}

func (f *fakeAnalyzer) AnalyzeStyle(ctx context.Context, messages string) (string, error) {
	f.input = messages
	return f.result, f.err
}

func (f *fakeAnalyzer) Portrait(ctx context.Context, username string) (string, error) {
	f.input = username
	return f.result, f.err
}

func testServer(users *fakeUsers, messages *fakeMessages, analyzer *fakeAnalyzer) *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	srv := NewServer(&config.APIConfig{Enabled: true, Port: 0}, users, messages, nil, 50, middleware.NewMetrics(), log)
	if analyzer != nil {
		// assigned directly so a nil *fakeAnalyzer stays a nil interface
		srv.analyzer = analyzer
	}
	return srv
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&fakeUsers{}, &fakeMessages{}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyzeEndpoint(t *testing.T) {
	analyzer := &fakeAnalyzer{result: "краткий разбор"}
	srv := testServer(
		&fakeUsers{id: 42},
		&fakeMessages{texts: []string{"привет", "как дела"}},
		analyzer,
	)

	rec := post(t, srv, "/analyze", `{"username":"@ivan"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "краткий разбор", body["analysis"])
	assert.Equal(t, "привет\nкак дела", analyzer.input)
}

func TestAnalyzeRequiresUsername(t *testing.T) {
	srv := testServer(&fakeUsers{}, &fakeMessages{}, &fakeAnalyzer{})

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/analyze", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/analyze", `{"username":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/analyze", `not json`).Code)
}

func TestAnalyzeUnknownUser(t *testing.T) {
	srv := testServer(
		&fakeUsers{err: fmt.Errorf("nope: %w", storage.ErrNotFound)},
		&fakeMessages{},
		&fakeAnalyzer{},
	)

	assert.Equal(t, http.StatusNotFound, post(t, srv, "/analyze", `{"username":"ghost"}`).Code)
}

func TestAnalyzeUserWithNoMessages(t *testing.T) {
	srv := testServer(&fakeUsers{id: 42}, &fakeMessages{texts: nil}, &fakeAnalyzer{})

	assert.Equal(t, http.StatusNotFound, post(t, srv, "/analyze", `{"username":"silent"}`).Code)
}

func TestAnalyzeDisabled(t *testing.T) {
	srv := testServer(&fakeUsers{}, &fakeMessages{}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, post(t, srv, "/analyze", `{"username":"ivan"}`).Code)
}

func TestPortraitEndpoint(t *testing.T) {
	analyzer := &fakeAnalyzer{result: "портрет"}
	srv := testServer(&fakeUsers{id: 42}, &fakeMessages{}, analyzer)

	rec := post(t, srv, "/portrait", `{"username":"ivan"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "портрет", body["portrait"])
	assert.Equal(t, "ivan", analyzer.input)
}
