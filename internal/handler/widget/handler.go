package widget

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed widget.html
var page []byte

// RegisterRoutes serves the embeddable widget page.
func RegisterRoutes(r chi.Router) {
	r.Get("/", handlePage)
}

func handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
