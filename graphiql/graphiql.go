// Package graphiql serves the GraphiQL explorer for a graphql endpoint.
package graphiql

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed graphiql.html
var graphiql string

var page = template.Must(template.New("graphiql").Parse(graphiql))

// New serves the explorer pointed at endpoint, the path of the graphql api.
func New(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var buffer bytes.Buffer
		if err := page.Execute(&buffer, struct{ Route string }{Route: endpoint}); err != nil {
			zerolog.Ctx(req.Context()).Error().Err(err).Msg("failed to render graphiql")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buffer.Bytes())
	}
}
