package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/harbz07/mindbridge-router/internal/core"
)

func runAuth(t *testing.T, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	mw := AuthMiddleware("secret-key", []string{"/health"})
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"valid token", "/v1/models", "Bearer secret-key", http.StatusOK},
		{"missing header", "/v1/models", "", http.StatusUnauthorized},
		{"wrong scheme", "/v1/models", "Basic secret-key", http.StatusUnauthorized},
		{"wrong token", "/v1/models", "Bearer nope", http.StatusUnauthorized},
		{"token is prefix of key", "/v1/models", "Bearer secret", http.StatusUnauthorized},
		{"skip path needs no token", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runAuth(t, tt.path, tt.header)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if got := errorCode(t, rec.Body.Bytes()); got != string(core.KindUnauthenticated) {
					t.Errorf("error code = %q", got)
				}
			}
		})
	}
}

func TestAuthRunsBeforeRouting(t *testing.T) {
	mock := &mockProvider{tag: "openai"}
	reg := newTestHandler(t, mock)

	e := echo.New()
	mw := AuthMiddleware("secret-key", nil)
	handler := mw(reg.ChatCompletion)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if mock.calls != 0 {
		t.Error("adapter reached by unauthenticated request")
	}
}
