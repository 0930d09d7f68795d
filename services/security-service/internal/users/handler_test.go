package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRepo struct {
	err error
}

func (r *scriptedRepo) CreateUserWithEvent(_ context.Context, _ User, _ []byte, _ uuid.UUID) error {
	return r.err
}

func newTestServer(repo Repository) *httptest.Server {
	svc := NewService(repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandler(svc, logger).Register(mux)
	return httptest.NewServer(mux)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestCreateUser_Created(t *testing.T) {
	srv := newTestServer(&scriptedRepo{})
	defer srv.Close()

	resp := post(t, srv.URL, `{"login":"alice","password":"password1","name":"Alice"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		ID    uuid.UUID `json:"id"`
		Login string    `json:"login"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEqual(t, uuid.Nil, body.ID)
	assert.Equal(t, "alice", body.Login)
}

func TestCreateUser_BadJSON(t *testing.T) {
	srv := newTestServer(&scriptedRepo{})
	defer srv.Close()

	resp := post(t, srv.URL, `{"login":`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateUser_InvalidRequest(t *testing.T) {
	srv := newTestServer(&scriptedRepo{})
	defer srv.Close()

	resp := post(t, srv.URL, `{"login":"bob","password":"short"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateUser_Conflict(t *testing.T) {
	srv := newTestServer(&scriptedRepo{err: ErrLoginTaken})
	defer srv.Close()

	resp := post(t, srv.URL, `{"login":"alice","password":"password1"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateUser_RepoFailure(t *testing.T) {
	srv := newTestServer(&scriptedRepo{err: errors.New("pg down")})
	defer srv.Close()

	resp := post(t, srv.URL, `{"login":"alice","password":"password1"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
