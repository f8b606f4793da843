package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/api"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/auth"
	"github.com/FREEWORLD-HUB/group1-advertisement/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	RegisterRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

// HandleRegister creates a local account. The requested role must be one of
// allowedRoles; an empty role means core.RoleUser.
func HandleRegister(users core.UserStore, allowedRoles []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Detail(w, r, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		user, err := newUser(req, allowedRoles)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if err := users.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, core.ErrConflict) {
				api.Detail(w, r, http.StatusConflict, "User already exists")
				return
			}
			api.WriteError(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{"user_id": user.ID, "roles": user.Roles}).Info("User registered")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"message": "User registered successfully", "data": user})
	}
}

func newUser(req RegisterRequest, allowedRoles []string) (*core.User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", core.ErrValidation)
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", core.ErrValidation, auth.MinPasswordLength)
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = core.RoleUser
	}
	if !core.HasAnyRole(allowedRoles, role) {
		return nil, fmt.Errorf("%w: role %q cannot be registered", core.ErrValidation, role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	return &core.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{role},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// HandleLogin exchanges email and password for an access token.
func HandleLogin(users core.UserStore, issuer *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Detail(w, r, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		user, err := users.FindUserByEmail(r.Context(), strings.TrimSpace(req.Email))
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			api.WriteError(w, r, err)
			return
		}
		if user == nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
			api.Detail(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := issuer.Issue(user)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		logrus.WithField("user_id", user.ID).Info("User logged in")
		render.JSON(w, r, map[string]string{
			"message":      "User logged in successfully",
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}

// HandleMe returns the caller's account.
func HandleMe(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.CallerID(r.Context())
		if id == "" {
			api.WriteError(w, r, core.ErrUnauthenticated)
			return
		}

		user, err := users.FindUserByID(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.Data(w, r, http.StatusOK, user)
	}
}
