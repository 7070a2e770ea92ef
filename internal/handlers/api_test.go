package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/middleware"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/security"
	"github.com/streamr/backend/internal/streams"
)

const movieID = "movie-1"

type testAPI struct {
	t       *testing.T
	store   *memoryStore
	search  *recordingSearch
	handler http.Handler
}

func newTestAPI(t *testing.T, limiter middleware.RateLimiter) *testAPI {
	t.Helper()

	hasher, err := security.NewHasher(security.Params{Algorithm: security.AlgorithmScrypt, ScryptN: 16, ScryptR: 1, ScryptP: 1})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	store := newMemoryStore()
	store.addMovie(models.Movie{ID: movieID, ExternalID: "imdb:tt0499549", Title: "Avatar", Category: models.CategoryMovie})
	search := &recordingSearch{}

	deps := Dependencies{
		Users:    memUsers{store},
		Hasher:   hasher,
		Tokens:   tokens,
		Identity: auth.NewIdentityResolver(tokens, memUsers{store}),
		Movies:   memMovies{store},
		Search:   search,
		Streams:  streams.NewService(memStreams{store}, memEntries{store}, memMovies{store}),
		Stats:    memStats{store},
		Limiter:  limiter,
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testAPI{t: t, store: store, search: search, handler: middleware.RequestLogger(logger)(mux)}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doRaw(method, path, token, body string) *httptest.ResponseRecorder {
	a.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) expect(rec *httptest.ResponseRecorder, status int) {
	a.t.Helper()
	if rec.Code != status {
		a.t.Fatalf("expected status %d got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func (a *testAPI) signUp(username, password string) (string, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", "", map[string]string{
		"username": username,
		"email":    strings.ToUpper(username) + "@Example.com",
		"password": password,
	})
	a.expect(rec, http.StatusCreated)
	resp := decodeBody[signUpResponse](a.t, rec)
	if resp.AuthToken == "" || resp.User.ID == "" {
		a.t.Fatalf("expected token and user in signup response: %+v", resp)
	}
	return resp.User.ID, resp.AuthToken
}

func (a *testAPI) createStream(token, name string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/movies/"+movieID+"/streams", token, map[string]string{"name": name})
	a.expect(rec, http.StatusCreated)
	return decodeBody[streamEnvelope](a.t, rec).Stream.ID
}

func (a *testAPI) counter() int {
	return a.store.movie(movieID).NumberOfStreams
}

func TestSignUpAndLogin(t *testing.T) {
	api := newTestAPI(t, nil)
	_, signupToken := api.signUp("bob", "sesamsesam")

	stored, err := memUsers{api.store}.FindByUsername(t.Context(), "bob")
	if err != nil {
		t.Fatalf("expected bob to be stored: %v", err)
	}
	if stored.Email != "bob@example.com" {
		t.Fatalf("expected lower-cased email got %q", stored.Email)
	}
	if stored.PasswordHash == "sesamsesam" || !strings.HasPrefix(stored.PasswordHash, "scrypt:") {
		t.Fatalf("expected a password fingerprint, got %q", stored.PasswordHash)
	}

	for _, identifier := range []string{"bob", "bob@example.com", "BOB@example.com"} {
		rec := api.do(http.MethodPost, "/login", "", map[string]string{"identifier": identifier, "password": "sesamsesam"})
		api.expect(rec, http.StatusOK)
		resp := decodeBody[loginResponse](t, rec)
		if resp.AuthToken == "" || resp.User.Username != "bob" {
			t.Fatalf("unexpected login response: %+v", resp)
		}
		if resp.User.Email != "" {
			t.Fatalf("login response must not include personal data: %+v", resp.User)
		}
	}

	rec := api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "wrong-password"})
	api.expect(rec, http.StatusUnauthorized)
	rec = api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "nobody", "password": "sesamsesam"})
	api.expect(rec, http.StatusUnauthorized)

	rec = api.do(http.MethodGet, "/movies/"+movieID, signupToken, nil)
	api.expect(rec, http.StatusOK)
}

type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verified []string
}

func (c *countingHasher) Verify(password, fingerprint string) bool {
	c.mu.Lock()
	c.verified = append(c.verified, fingerprint)
	c.mu.Unlock()
	return c.PasswordHasher.Verify(password, fingerprint)
}

func TestLoginRunsKDFForUnknownAccounts(t *testing.T) {
	hasher, err := security.NewHasher(security.Params{Algorithm: security.AlgorithmScrypt, ScryptN: 16, ScryptR: 1, ScryptP: 1})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	counting := &countingHasher{PasswordHasher: hasher}
	store := newMemoryStore()
	users := UserHandler{Users: memUsers{store}, Hasher: counting, Tokens: tokens}

	login := func(identifier string) int {
		body := `{"identifier":"` + identifier + `","password":"sesamsesam"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		users.Login(rec, req)
		return rec.Code
	}

	if code := login("nobody"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown account got %d", code)
	}
	if len(counting.verified) != 1 || counting.verified[0] != hasher.DummyFingerprint() {
		t.Fatalf("expected one verification against the dummy fingerprint, got %v", counting.verified)
	}
}

func TestSignUpValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signUp("bob", "sesamsesam")

	cases := []struct {
		name   string
		body   map[string]string
		status int
		field  string
	}{
		{name: "missing username", body: map[string]string{"email": "a@example.com", "password": "longenough"}, status: http.StatusBadRequest, field: "username"},
		{name: "bad email", body: map[string]string{"username": "alice", "email": "nope", "password": "longenough"}, status: http.StatusBadRequest, field: "email"},
		{name: "short password", body: map[string]string{"username": "alice", "email": "a@example.com", "password": "short"}, status: http.StatusBadRequest, field: "password"},
		{name: "long username", body: map[string]string{"username": strings.Repeat("a", 21), "email": "a@example.com", "password": "longenough"}, status: http.StatusBadRequest, field: "username"},
		{name: "duplicate username", body: map[string]string{"username": "bob", "email": "other@example.com", "password": "longenough"}, status: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/users", "", tc.body)
			api.expect(rec, tc.status)
			if tc.field != "" {
				resp := decodeBody[messageResponse](t, rec)
				if _, ok := resp.Errors[tc.field]; !ok {
					t.Fatalf("expected error for %q got %+v", tc.field, resp.Errors)
				}
			}
		})
	}

	rec := api.do(http.MethodPost, "/users", "", nil)
	api.expect(rec, http.StatusBadRequest)
}

func TestPrivateStreamVisibilityOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")

	streamID := api.createStream(bob, "Director's notes")
	if api.counter() != 0 {
		t.Fatalf("expected new private stream to leave counter at 0")
	}

	api.expect(api.do(http.MethodGet, "/streams/"+streamID, "", nil), http.StatusUnauthorized)
	api.expect(api.do(http.MethodGet, "/streams/"+streamID, alice, nil), http.StatusForbidden)

	rec := api.do(http.MethodGet, "/streams/"+streamID, bob, nil)
	api.expect(rec, http.StatusOK)
	if stream := decodeBody[streamEnvelope](t, rec).Stream; stream.Public {
		t.Fatalf("expected stream to start private")
	}

	api.expect(api.do(http.MethodGet, "/streams/"+streamID+"/entries", alice, nil), http.StatusForbidden)
	api.expect(api.do(http.MethodGet, "/streams/does-not-exist", bob, nil), http.StatusNotFound)

	movie := decodeBody[map[string]movieResponse](t, api.do(http.MethodGet, "/movies/"+movieID, alice, nil))["movie"]
	if len(movie.Streams) != 0 {
		t.Fatalf("expected alice not to see bob's private stream, got %+v", movie.Streams)
	}
	movie = decodeBody[map[string]movieResponse](t, api.do(http.MethodGet, "/movies/"+movieID, bob, nil))["movie"]
	if len(movie.Streams) != 1 {
		t.Fatalf("expected bob to see his private stream, got %+v", movie.Streams)
	}
}

func TestPublishLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	streamID := api.createStream(bob, "Trivia")

	rec := api.do(http.MethodPost, "/streams/"+streamID+"/publish", bob, nil)
	api.expect(rec, http.StatusOK)
	if !decodeBody[streamEnvelope](t, rec).Stream.Public || api.counter() != 1 {
		t.Fatalf("expected published stream and counter 1, got counter %d", api.counter())
	}

	api.expect(api.do(http.MethodPost, "/streams/"+streamID+"/publish", bob, nil), http.StatusBadRequest)
	if api.counter() != 1 {
		t.Fatalf("expected counter to stay at 1 got %d", api.counter())
	}

	api.expect(api.do(http.MethodGet, "/streams/"+streamID, "", nil), http.StatusOK)

	api.expect(api.do(http.MethodPost, "/streams/"+streamID+"/unpublish", bob, nil), http.StatusOK)
	if api.counter() != 0 {
		t.Fatalf("expected counter back at 0 got %d", api.counter())
	}
	api.expect(api.do(http.MethodPost, "/streams/"+streamID+"/unpublish", bob, nil), http.StatusBadRequest)
}

func TestDeleteAdjustsCounterOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")

	public := api.createStream(bob, "Public")
	private := api.createStream(bob, "Private")
	api.expect(api.do(http.MethodPost, "/streams/"+public+"/publish", bob, nil), http.StatusOK)
	if api.counter() != 1 {
		t.Fatalf("expected counter 1 got %d", api.counter())
	}

	api.expect(api.do(http.MethodDelete, "/streams/"+public, bob, nil), http.StatusOK)
	if api.counter() != 0 {
		t.Fatalf("expected counter 0 after deleting public stream got %d", api.counter())
	}

	api.expect(api.do(http.MethodDelete, "/streams/"+private, bob, nil), http.StatusOK)
	if api.counter() != 0 {
		t.Fatalf("expected counter unchanged after deleting private stream got %d", api.counter())
	}
	api.expect(api.do(http.MethodGet, "/streams/"+private, bob, nil), http.StatusNotFound)
}

func TestNonOwnerMutationsAreForbidden(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")

	streamID := api.createStream(bob, "Bob's stream")
	api.expect(api.do(http.MethodPost, "/streams/"+streamID+"/publish", bob, nil), http.StatusOK)

	calls := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodDelete, "/streams/" + streamID, nil},
		{http.MethodPost, "/streams/" + streamID + "/publish", nil},
		{http.MethodPost, "/streams/" + streamID + "/unpublish", nil},
		{http.MethodPut, "/streams/" + streamID, map[string]string{"name": "hijacked"}},
		{http.MethodPost, "/streams/" + streamID + "/entries", map[string]any{"title": "x", "content_type": "text", "content": map[string]string{"text": "x"}}},
	}
	for _, call := range calls {
		rec := api.do(call.method, call.path, alice, call.body)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 got %d", call.method, call.path, rec.Code)
		}
	}

	for _, call := range calls {
		rec := api.do(call.method, call.path, "", call.body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous %s %s: expected 401 got %d", call.method, call.path, rec.Code)
		}
	}

	if api.counter() != 1 {
		t.Fatalf("expected counter untouched at 1 got %d", api.counter())
	}
}

func TestGatedEndpointsCheckAccessBeforeBody(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")

	streamID := api.createStream(bob, "Bob's stream")
	rec := api.do(http.MethodPost, "/streams/"+streamID+"/entries", bob, map[string]any{
		"title": "Fact", "content_type": "text", "content": map[string]string{"text": "x"},
	})
	api.expect(rec, http.StatusCreated)
	entryID := decodeBody[entryEnvelope](t, rec).Entry.ID

	owned := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/streams/" + streamID},
		{http.MethodPost, "/streams/" + streamID + "/entries"},
		{http.MethodPut, "/entries/" + entryID},
	}
	bodies := []string{"", "{not json"}

	for _, body := range bodies {
		rec := api.doRaw(http.MethodPost, "/movies/"+movieID+"/streams", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous create with body %q: expected 401 got %d", body, rec.Code)
		}
		for _, call := range owned {
			if rec := api.doRaw(call.method, call.path, "", body); rec.Code != http.StatusUnauthorized {
				t.Fatalf("anonymous %s %s with body %q: expected 401 got %d", call.method, call.path, body, rec.Code)
			}
			if rec := api.doRaw(call.method, call.path, alice, body); rec.Code != http.StatusForbidden {
				t.Fatalf("non-owner %s %s with body %q: expected 403 got %d", call.method, call.path, body, rec.Code)
			}
			if rec := api.doRaw(call.method, call.path, bob, body); rec.Code != http.StatusBadRequest {
				t.Fatalf("owner %s %s with body %q: expected 400 got %d", call.method, call.path, body, rec.Code)
			}
		}
	}

	api.expect(api.doRaw(http.MethodPost, "/movies/missing/streams", alice, ""), http.StatusNotFound)
	api.expect(api.doRaw(http.MethodPut, "/streams/missing", alice, ""), http.StatusNotFound)
	api.expect(api.doRaw(http.MethodPost, "/movies/"+movieID+"/streams", alice, ""), http.StatusBadRequest)
}

func TestChangePasswordInvalidatesOldTokens(t *testing.T) {
	api := newTestAPI(t, nil)
	bobID, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")

	// A second session for bob, minted before the change.
	rec := api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "sesamsesam"})
	api.expect(rec, http.StatusOK)
	bobLaptop := decodeBody[loginResponse](t, rec).AuthToken

	change := map[string]string{"current_password": "sesamsesam", "new_password": "opensesame"}
	path := "/users/" + bobID + "/password"

	api.expect(api.do(http.MethodPut, path, "", change), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPut, path, alice, change), http.StatusForbidden)
	api.expect(api.do(http.MethodPut, path, bob, map[string]string{
		"current_password": "wrong-password",
		"new_password":     "opensesame",
	}), http.StatusBadRequest)

	rec = api.do(http.MethodPut, path, bob, map[string]string{"current_password": "sesamsesam", "new_password": "short"})
	api.expect(rec, http.StatusBadRequest)
	if _, ok := decodeBody[messageResponse](t, rec).Errors["new_password"]; !ok {
		t.Fatalf("expected new_password validation error: %s", rec.Body.String())
	}

	// Rejected attempts leave existing tokens working.
	api.expect(api.do(http.MethodGet, "/users/"+bobID, bob, nil), http.StatusOK)

	rec = api.do(http.MethodPut, path, bob, change)
	api.expect(rec, http.StatusOK)
	fresh := decodeBody[map[string]string](t, rec)["auth_token"]
	if fresh == "" || fresh == bob {
		t.Fatalf("expected a new token, got %q", fresh)
	}

	for _, stale := range []string{bob, bobLaptop} {
		api.expect(api.do(http.MethodGet, "/users/"+bobID, stale, nil), http.StatusUnauthorized)
		api.expect(api.do(http.MethodPost, "/movies/"+movieID+"/streams", stale, map[string]string{"name": "x"}), http.StatusUnauthorized)
	}
	api.expect(api.do(http.MethodPut, path, bob, map[string]string{
		"current_password": "opensesame",
		"new_password":     "sesamsesam",
	}), http.StatusUnauthorized)

	api.expect(api.do(http.MethodGet, "/users/"+bobID, fresh, nil), http.StatusOK)
	api.createStream(fresh, "After the change")

	api.expect(api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "sesamsesam"}), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "opensesame"}), http.StatusOK)
}

func TestEntryEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")
	streamID := api.createStream(bob, "Trivia")

	rec := api.do(http.MethodPost, "/streams/"+streamID+"/entries", bob, map[string]any{
		"entry_point_in_ms": 5000,
		"title":             "Fun fact",
		"content_type":      "text",
		"content":           map[string]string{"text": "Shot in New Zealand"},
		"stream_id":         "someone-elses",
	})
	api.expect(rec, http.StatusCreated)
	entry := decodeBody[entryEnvelope](t, rec).Entry
	if entry.StreamID != streamID || entry.EntryPointMS != 5000 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	rec = api.do(http.MethodPost, "/streams/"+streamID+"/entries", bob, map[string]any{
		"entry_point_in_ms": -1,
		"title":             "",
		"content_type":      "text",
		"content":           "not an object",
	})
	api.expect(rec, http.StatusBadRequest)
	fields := decodeBody[messageResponse](t, rec).Errors
	for _, field := range []string{"entry_point_in_ms", "title", "content"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected validation error for %s got %+v", field, fields)
		}
	}

	api.expect(api.do(http.MethodGet, "/entries/"+entry.ID, alice, nil), http.StatusForbidden)
	api.expect(api.do(http.MethodGet, "/entries/"+entry.ID, bob, nil), http.StatusOK)

	rec = api.do(http.MethodPut, "/entries/"+entry.ID, bob, map[string]any{
		"entry_point_in_ms": 6000,
		"title":             "Updated",
		"content_type":      "text",
		"content":           map[string]string{"text": "Filmed in 2007"},
	})
	api.expect(rec, http.StatusOK)
	if got := decodeBody[entryEnvelope](t, rec).Entry; got.EntryPointMS != 6000 || got.Title != "Updated" {
		t.Fatalf("unexpected updated entry: %+v", got)
	}

	rec = api.do(http.MethodGet, "/streams/"+streamID+"/entries", bob, nil)
	api.expect(rec, http.StatusOK)
	if entries := decodeBody[map[string][]entryResponse](t, rec)["entries"]; len(entries) != 1 {
		t.Fatalf("expected one entry got %d", len(entries))
	}

	api.expect(api.do(http.MethodDelete, "/entries/"+entry.ID, alice, nil), http.StatusForbidden)
	api.expect(api.do(http.MethodDelete, "/entries/"+entry.ID, bob, nil), http.StatusOK)
	api.expect(api.do(http.MethodGet, "/entries/"+entry.ID, bob, nil), http.StatusNotFound)
}

func TestTokenErrorsOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	bobID, bob := api.signUp("bob", "sesamsesam")

	api.expect(api.do(http.MethodGet, "/users/"+bobID, "garbage", nil), http.StatusBadRequest)

	rec := api.do(http.MethodPut, "/users/"+bobID+"/password", bob, map[string]string{
		"current_password": "sesamsesam",
		"new_password":     "opensesame",
	})
	api.expect(rec, http.StatusOK)
	fresh := decodeBody[map[string]string](t, rec)["auth_token"]
	if fresh == "" {
		t.Fatalf("expected a fresh token after password change")
	}

	api.expect(api.do(http.MethodGet, "/users/"+bobID, bob, nil), http.StatusUnauthorized)
	api.expect(api.do(http.MethodGet, "/users/"+bobID, fresh, nil), http.StatusOK)

	api.expect(api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "sesamsesam"}), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPost, "/login", "", map[string]string{"identifier": "bob", "password": "opensesame"}), http.StatusOK)
}

func TestUserDetailIsSelfOnly(t *testing.T) {
	api := newTestAPI(t, nil)
	bobID, bob := api.signUp("bob", "sesamsesam")
	_, alice := api.signUp("alice", "wonderland")

	api.expect(api.do(http.MethodGet, "/users/"+bobID, "", nil), http.StatusUnauthorized)
	api.expect(api.do(http.MethodGet, "/users/"+bobID, alice, nil), http.StatusForbidden)

	rec := api.do(http.MethodGet, "/users/"+bobID, bob, nil)
	api.expect(rec, http.StatusOK)
	user := decodeBody[map[string]userResponse](t, rec)["user"]
	if user.Email != "bob@example.com" || user.SignedUp == nil {
		t.Fatalf("expected personal details for self, got %+v", user)
	}

	rec = api.do(http.MethodPut, "/users/"+bobID+"/password", bob, map[string]string{
		"current_password": "not-my-password",
		"new_password":     "opensesame",
	})
	api.expect(rec, http.StatusBadRequest)
}

func TestMovieSearchTriggersExternalLookup(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/movies?q=ava", "", nil)
	api.expect(rec, http.StatusOK)
	movies := decodeBody[map[string][]movieResponse](t, rec)["movies"]
	if len(movies) != 1 || movies[0].Title != "Avatar" {
		t.Fatalf("unexpected search results: %+v", movies)
	}
	if len(api.search.queries) != 1 || api.search.queries[0] != "ava" {
		t.Fatalf("expected external search to be triggered, got %v", api.search.queries)
	}

	api.expect(api.do(http.MethodGet, "/movies?limit=zero", "", nil), http.StatusBadRequest)
	api.expect(api.do(http.MethodGet, "/movies/unknown", "", nil), http.StatusNotFound)
}

func TestStatsAndHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	_, bob := api.signUp("bob", "sesamsesam")
	api.createStream(bob, "One")

	rec := api.do(http.MethodGet, "/stats", "", nil)
	api.expect(rec, http.StatusOK)
	stats := decodeBody[statsResponse](t, rec)
	if stats.Movies != 1 || stats.Streams != 1 || stats.Entries != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	api.expect(api.do(http.MethodGet, "/healthz", "", nil), http.StatusOK)
	api.expect(api.do(http.MethodDelete, "/stats", "", nil), http.StatusMethodNotAllowed)
}

func TestLoginIsRateLimited(t *testing.T) {
	api := newTestAPI(t, middleware.NewKeyedRateLimiter(2, time.Minute, 2))

	body := map[string]string{"identifier": "bob", "password": "whatever"}
	api.expect(api.do(http.MethodPost, "/login", "", body), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPost, "/login", "", body), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPost, "/login", "", body), http.StatusTooManyRequests)
}
