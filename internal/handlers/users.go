package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/authz"
	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/repositories"
	"github.com/streamr/backend/internal/streams"
)

// UserHandler implements signup, login and account endpoints.
type UserHandler struct {
	Users   UserStore
	Hasher  PasswordHasher
	Tokens  TokenIssuer
	NowFunc func() time.Time
}

type signUpRequest struct {
	Username string `json:"username" validate:"required,max=20"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=1024"`
}

type signUpResponse struct {
	Msg       string       `json:"msg"`
	User      userResponse `json:"user"`
	AuthToken string       `json:"auth_token"`
}

type loginResponse struct {
	AuthToken string       `json:"auth_token"`
	User      userResponse `json:"user"`
}

// SignUp handles POST /users.
func (h UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(&req); err != nil {
		writeError(ctx, w, err)
		return
	}

	hashed, err := h.Hasher.Hash(req.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
		CreatedAt:    h.now(),
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "username", req.Username)
			respondMessage(ctx, w, http.StatusConflict, "Username or email already taken.")
			return
		}
		writeError(ctx, w, err)
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logger.Info("user signed up", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, signUpResponse{
		Msg:       "User created",
		User:      newUserResponse(user, true),
		AuthToken: token,
	})
}

// Login handles POST /login. The identifier may be a username or an email address.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := validateRequest(&req); err != nil {
		writeError(ctx, w, err)
		return
	}

	user, err := h.lookup(r, req.Identifier)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		writeError(ctx, w, err)
		return
	}
	if err != nil {
		// Unknown accounts pay for a KDF run too.
		h.Hasher.Verify(req.Password, h.Hasher.DummyFingerprint())
		respondMessage(ctx, w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !h.Hasher.Verify(req.Password, user.PasswordHash) {
		respondMessage(ctx, w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, loginResponse{AuthToken: token, User: newUserResponse(user, false)})
}

func (h UserHandler) lookup(r *http.Request, identifier string) (models.User, error) {
	user, err := h.Users.FindByUsername(r.Context(), identifier)
	if err == nil || !errors.Is(err, repositories.ErrNotFound) {
		return user, err
	}
	return h.Users.FindByEmail(r.Context(), strings.ToLower(identifier))
}

// Get handles GET /users/{id}. Only the user themself may read the account.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)

	if err := authz.RequireOwner(identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}

	user, ok := identity.User()
	if !ok {
		writeError(ctx, w, authz.ErrUnauthenticated)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]userResponse{"user": newUserResponse(user, true)})
}

// ChangePassword handles PUT /users/{id}/password. Tokens issued before the
// change stop resolving; the response carries a fresh one.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)

	if err := authz.RequireOwner(identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	user, _ := identity.User()

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(ctx, w, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if !h.Hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		writeError(ctx, w, &streams.ValidationError{Fields: map[string]string{"current_password": "is incorrect"}})
		return
	}

	hashed, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		writeError(ctx, w, err)
		return
	}

	user.PasswordHash = hashed
	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("password changed", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"msg": "Password changed.", "auth_token": token})
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
