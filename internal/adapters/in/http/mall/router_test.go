package mall

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func named(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(name))
	})
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, Deps{Cart: named("cart")})

	cases := map[string]struct {
		code int
		body string
	}{
		"/mall/me/cart":          {http.StatusOK, "cart"},
		"/mall/me/cart/merge":    {http.StatusOK, "cart"},
		"/mall/me/cart/items":    {http.StatusOK, "cart"},
		"/mall/me/usage/listing": {http.StatusNotFound, ""},
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want.code, rec.Code, path)
		if want.body != "" {
			assert.Equal(t, want.body, rec.Body.String(), path)
		}
	}
}
