package echo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/memory"
)

// errorStore fails every read
type errorStore struct {
	*memory.Storage
}

func (s *errorStore) GetRange(context.Context, string) ([][]string, error) {
	return nil, errors.New("connection refused")
}

func setupTestQuerier(t *testing.T) *sheetsync.Querier {
	t.Helper()

	store := memory.New()
	store.Seed(sheetsync.DefaultSheetName, [][]string{
		{"paid@example.com", "active", "sub_1"},
		{"gone@example.com", "canceled", "sub_2"},
	})
	querier, err := sheetsync.NewQuerier(store, nil)
	if err != nil {
		t.Fatalf("Failed to create querier: %v", err)
	}
	return querier
}

func setupEcho(cfg Config) *echo.Echo {
	e := echo.New()
	e.GET("/premium", func(c echo.Context) error {
		rec, ok := RecordFromContext(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, rec.Email)
	}, Middleware(cfg))
	return e
}

func TestMiddleware_Responses(t *testing.T) {
	e := setupEcho(Config{Querier: setupTestQuerier(t), GetEmail: FromQuery("email")})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"paid", "?email=PAID@example.com", http.StatusOK},
		{"canceled", "?email=gone@example.com", http.StatusPaymentRequired},
		{"unknown", "?email=nobody@example.com", http.StatusPaymentRequired},
		{"no email", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium"+tt.query, nil))
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMiddleware_PaidRecordInContext(t *testing.T) {
	e := setupEcho(Config{Querier: setupTestQuerier(t), GetEmail: FromHeader("X-User-Email")})

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set("X-User-Email", " Paid@Example.com ")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Body.String() != "paid@example.com" {
		t.Errorf("Expected normalized email in body, got %q", rec.Body.String())
	}
}

func TestMiddleware_NotPaidBody(t *testing.T) {
	e := setupEcho(Config{Querier: setupTestQuerier(t), GetEmail: FromQuery("email")})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium?email=gone@example.com", nil))
	if !strings.Contains(rec.Body.String(), `"status":"canceled"`) {
		t.Errorf("Expected canceled status in body, got %s", rec.Body.String())
	}
}

func TestMiddleware_StoreError(t *testing.T) {
	querier, err := sheetsync.NewQuerier(&errorStore{memory.New()}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var gotErr error
	e := setupEcho(Config{
		Querier:  querier,
		GetEmail: FromQuery("email"),
		OnError: func(c echo.Context, err error) error {
			gotErr = err
			return c.NoContent(http.StatusServiceUnavailable)
		},
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium?email=paid@example.com", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if gotErr == nil {
		t.Error("Expected OnError to receive the store error")
	}
}

func TestMiddleware_FromContext(t *testing.T) {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("Email", "paid@example.com")
			return next(c)
		}
	})
	e.GET("/premium", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, Middleware(Config{Querier: setupTestQuerier(t), GetEmail: FromContext("Email")}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}
