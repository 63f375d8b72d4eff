package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Baoanh2610/callvideo/internal/handler"
	"github.com/Baoanh2610/callvideo/internal/token"
)

type stubSigner struct {
	err error
}

func (s *stubSigner) Sign(channel, uid string, expireAt time.Time) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("tok|%s|%s", channel, uid), nil
}

func newTestRouter(signer token.Signer, origin string) http.Handler {
	logger := zap.NewNop()
	svc := token.NewService(signer, token.BindClientUID, logger)
	return handler.NewRouter(handler.NewHandlers(svc, logger), origin, logger)
}

func postToken(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIssueTokenSuccess(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "http://localhost:3000")

	rec := postToken(t, router, `{"identity":"u1-1700000000","room":"alpha"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("missing CORS header, got %q", got)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok|alpha|u1-1700000000" {
		t.Errorf("unexpected token %q", resp.Token)
	}
}

func TestIssueTokenPreflight(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "*")

	req := httptest.NewRequest(http.MethodOptions, "/api/token", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code < 200 || rec.Code > 299 {
		t.Fatalf("pre-flight must succeed, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "token") {
		t.Errorf("pre-flight response must not contain a token: %s", rec.Body.String())
	}
}

func TestIssueTokenWrongMethod(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("405 body must be JSON: %v", err)
	}
	if resp.Error == "" {
		t.Error("405 body must carry an error message")
	}
}

func TestIssueTokenMissingRoom(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "*")

	rec := postToken(t, router, `{"identity":"u1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestIssueTokenMalformedBody(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "*")

	rec := postToken(t, router, `{"identity":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIssueTokenMisconfigured(t *testing.T) {
	router := newTestRouter(nil, "*")

	rec := postToken(t, router, `{"identity":"u1","room":"alpha"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// The response must hide the configuration details.
	if body := rec.Body.String(); strings.Contains(body, "APP_") {
		t.Errorf("500 body leaks configuration: %s", body)
	}
}

func TestIssueTokenSigningFailure(t *testing.T) {
	router := newTestRouter(&stubSigner{err: fmt.Errorf("hsm offline")}, "*")

	rec := postToken(t, router, `{"identity":"u1","room":"alpha"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubSigner{}, "*")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("ok")) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}
