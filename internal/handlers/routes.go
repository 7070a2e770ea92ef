package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamr/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	DB       Pinger
	Users    UserStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Identity middleware.IdentityResolver
	Movies   MovieStore
	Search   SearchTrigger
	Streams  StreamService
	Stats    StatsStore
	Limiter  middleware.RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Routes that
// depend on the caller's identity resolve the Authorization header first.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	users := UserHandler{Users: deps.Users, Hasher: deps.Hasher, Tokens: deps.Tokens}
	movies := MovieHandler{Movies: deps.Movies, Streams: deps.Streams, Search: deps.Search}
	streamsH := StreamHandler{Streams: deps.Streams}
	entries := EntryHandler{Streams: deps.Streams}
	stats := StatsHandler{Stats: deps.Stats}

	authn := middleware.Authenticate(deps.Identity)
	withIdentity := func(h http.HandlerFunc) http.Handler { return authn(h) }
	limited := func(scope string, h http.Handler) http.Handler {
		return middleware.RateLimit(deps.Limiter, scope)(h)
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stats", stats.Handle)

	mux.Handle("POST /users", limited("signup", http.HandlerFunc(users.SignUp)))
	mux.Handle("POST /login", limited("login", http.HandlerFunc(users.Login)))
	mux.Handle("GET /users/{id}", withIdentity(users.Get))
	mux.Handle("PUT /users/{id}/password", limited("password", withIdentity(users.ChangePassword)))

	mux.HandleFunc("GET /movies", movies.List)
	mux.Handle("GET /movies/{id}", withIdentity(movies.Get))
	mux.Handle("POST /movies/{id}/streams", withIdentity(streamsH.Create))

	mux.Handle("GET /streams/{id}", withIdentity(streamsH.Get))
	mux.Handle("PUT /streams/{id}", withIdentity(streamsH.Update))
	mux.Handle("DELETE /streams/{id}", withIdentity(streamsH.Delete))
	mux.Handle("POST /streams/{id}/publish", withIdentity(streamsH.Publish))
	mux.Handle("POST /streams/{id}/unpublish", withIdentity(streamsH.Unpublish))
	mux.Handle("GET /streams/{id}/entries", withIdentity(streamsH.ListEntries))
	mux.Handle("POST /streams/{id}/entries", withIdentity(streamsH.CreateEntry))

	mux.Handle("GET /entries/{id}", withIdentity(entries.Get))
	mux.Handle("PUT /entries/{id}", withIdentity(entries.Update))
	mux.Handle("DELETE /entries/{id}", withIdentity(entries.Delete))
}
