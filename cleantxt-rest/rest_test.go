package cleantxtrest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestMiddlewares(t *testing.T) {
	router := Middlewares(zerolog.Nop(), chi.NewRouter())
	router.Get("/ok", func(w http.ResponseWriter, req *http.Request) {
		assert.NotNil(t, zerolog.Ctx(req.Context()))
		WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	router.Get("/panic", func(w http.ResponseWriter, req *http.Request) {
		panic("boom")
	})

	t.Run("json response", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	})

	t.Run("panics are recovered", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusUnauthorized, "CONNECT_REJECTED", "identity is required")

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "CONNECT_REJECTED", body.Error.Code)
}

func TestCacheControl(t *testing.T) {
	handler := CacheControl(func(w http.ResponseWriter, req *http.Request) {}, 30)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=30", w.Header().Get("Cache-Control"))
}
