package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/config"
	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookie   = "oauthstate"
	githubUserURL = "https://api.github.com/user"
)

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// OAuth signs users in through GitHub or an OIDC provider and exchanges the
// external identity for a local account and JWT.
type OAuth struct {
	users       core.UserStore
	issuer      *Issuer
	defaultRole string

	provider   string // "oidc", "github" or "" when unconfigured
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	githubUser string
}

// NewOAuth picks OIDC when configured, else GitHub, else disables the routes.
func NewOAuth(ctx context.Context, cfg config.AuthConfig, users core.UserStore, issuer *Issuer) *OAuth {
	o := &OAuth{users: users, issuer: issuer, defaultRole: cfg.DefaultRole, githubUser: githubUserURL}

	oidcConfigured := cfg.OIDC.IssuerURL != "" && cfg.OIDC.ClientID != ""
	githubConfigured := cfg.GitHub.ClientID != "" && cfg.GitHub.ClientSecret != ""

	switch {
	case oidcConfigured:
		logrus.Info("Initializing OIDC authentication provider.")
		if err := o.initOIDC(ctx, cfg.OIDC); err != nil {
			logrus.Errorf("Failed to create OIDC provider: %s", err.Error())
		}
	case githubConfigured:
		logrus.Info("Initializing GitHub authentication provider.")
		o.provider = "github"
		o.oauth = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	default:
		logrus.Warn("No OAuth provider configured.")
	}
	return o
}

func (o *OAuth) initOIDC(ctx context.Context, cfg config.OIDCConfig) error {
	if cfg.ClientSecret == "" {
		return errors.New("OIDC client secret is not set")
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return err
	}

	o.provider = "oidc"
	o.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	o.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	logrus.Info("OIDC provider initialized")
	return nil
}

func (o *OAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if o.oauth == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	var opts []oauth2.AuthCodeOption
	if o.provider == "oidc" {
		opts = append(opts, oauth2.AccessTypeOffline)
	}
	http.Redirect(w, r, o.oauth.AuthCodeURL(state, opts...), http.StatusTemporaryRedirect)
}

func (o *OAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if o.oauth == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.FormValue("state") {
		logrus.Error("oauth state mismatch")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := o.oauth.Exchange(r.Context(), code)
	if err != nil {
		logrus.Errorf("failed to exchange token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var profile *core.User
	if o.provider == "oidc" {
		profile, err = o.oidcProfile(r.Context(), token)
	} else {
		profile, err = o.githubProfile(r.Context(), token)
	}
	if err != nil {
		logrus.Errorf("failed to read user profile: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user, err := o.findOrCreate(r.Context(), profile)
	if err != nil {
		logrus.WithError(err).WithField("subject", profile.Subject).Error("failed to resolve local user")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	jwtToken, err := o.issuer.Issue(user)
	if err != nil {
		logrus.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	// Redirect to frontend with token
	http.Redirect(w, r, "/?token="+url.QueryEscape(jwtToken), http.StatusTemporaryRedirect)
}

func (o *OAuth) githubProfile(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	client := o.oauth.Client(ctx, token)
	resp, err := client.Get(o.githubUser)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from github: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read github response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github returned %s", resp.Status)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &githubUser); err != nil {
		return nil, fmt.Errorf("failed to unmarshal github user: %w", err)
	}
	if githubUser.ID == 0 {
		return nil, errors.New("github user has no id")
	}

	return &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Username:  githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
	}, nil
}

func (o *OAuth) oidcProfile(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token in token response")
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims from ID token: %w", err)
	}

	user := &core.User{
		Subject:   "oidc:" + claims.Sub,
		Username:  claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
	}
	// If preferred_username is not available, use email
	if user.Username == "" {
		user.Username = user.Email
	}
	return user, nil
}

// findOrCreate returns the account bound to profile.Subject, creating it with
// the default role on first login.
func (o *OAuth) findOrCreate(ctx context.Context, profile *core.User) (*core.User, error) {
	user, err := o.users.FindUserBySubject(ctx, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	profile.Roles = []string{o.defaultRole}
	if err := o.users.CreateUser(ctx, profile); err != nil {
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		// The email belongs to a local account; keep the identity without it.
		profile.Email = ""
		if err := o.users.CreateUser(ctx, profile); err != nil {
			return nil, err
		}
	}
	return profile, nil
}
