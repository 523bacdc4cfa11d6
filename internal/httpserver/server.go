package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"outbound/internal/observability"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	return &Server{Mux: mux.NewRouter()}
}

// NewAPI builds the public router: health endpoints plus the message API,
// with request metrics on every matched route.
func NewAPI(api *API, readyTimeout time.Duration, checks ...ReadyzCheck) http.Handler {
	s := New()
	s.Mux.Use(Metrics(observability.APIRequests))
	s.Mux.HandleFunc("/healthz", Healthz()).Methods(http.MethodGet)
	s.Mux.HandleFunc("/readyz", Readyz(readyTimeout, checks...)).Methods(http.MethodGet)
	api.Register(s.Mux)
	return Logging(s.Mux)
}
