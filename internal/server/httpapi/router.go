package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Handlers binds the services to HTTP.
type Handlers struct {
	accounts *services.AccountService
	logger   logging.Logger
}

// RouterConfig collects what NewRouter needs besides the services.
// Gatherer may be nil, in which case /metrics is not served.
type RouterConfig struct {
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

// NewRouter builds the /auth routes. CORS wraps the router itself, so
// preflights and unmatched requests carry the headers as well.
func NewRouter(sessions *services.SessionService, accounts *services.AccountService, cfg RouterConfig) http.Handler {
	log := cfg.Logger.With("module", "httpapi")
	h := &Handlers{accounts: accounts, logger: log}

	r := mux.NewRouter()
	r.Use(
		requestLogMiddleware(log, cfg.Metrics),
		timeoutMiddleware(cfg.RequestTimeout),
		authMiddleware(sessions, log),
	)

	r.HandleFunc("/", h.version).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer)).Methods(http.MethodGet)
	}

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", h.login).Methods(http.MethodPost)
	auth.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	auth.HandleFunc("/create", h.create).Methods(http.MethodPost)
	auth.HandleFunc("/edit", h.edit).Methods(http.MethodPatch)
	auth.HandleFunc("/change_password", h.changePassword).Methods(http.MethodPost)
	auth.HandleFunc("/delete", h.delete).Methods(http.MethodPost)
	auth.HandleFunc("/purge", h.purge).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	auth.HandleFunc("/identify", h.identify).Methods(http.MethodPost)
	auth.HandleFunc("/users", h.users).Methods(http.MethodPost)

	return corsMiddleware(r)
}
