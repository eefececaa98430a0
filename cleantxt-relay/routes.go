package cleantxtrelay

import (
	"net/http"

	cleantxtrest "github.com/cleantxt/cleantxt-go-utils/cleantxt-rest"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Router mounts the websocket endpoint and the operator endpoints.
func Router(logger zerolog.Logger, handler *Handler, allowedOrigins ...string) chi.Router {
	router := cleantxtrest.Middlewares(logger, chi.NewRouter(), allowedOrigins...)
	router.Handle("/ws", handler)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		cleantxtrest.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	router.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		cleantxtrest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": handler.Relay.Registry.Sessions(),
		})
	})
	return router
}
