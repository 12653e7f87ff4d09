package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type readiness bool

func (r readiness) IsReady() bool { return bool(r) }

func TestRequireReady(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	for _, tc := range []struct {
		ready bool
		want  int
	}{
		{ready: false, want: http.StatusServiceUnavailable},
		{ready: true, want: http.StatusNoContent},
	} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		if err := RequireReady(readiness(tc.ready))(next)(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != tc.want {
			t.Fatalf("ready=%v: expected %d, got %d", tc.ready, tc.want, rec.Code)
		}
	}
}
