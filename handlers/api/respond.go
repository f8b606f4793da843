// Package api holds helpers shared by the HTTP handlers.
package api

import (
	"errors"
	"net/http"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// StatusOf maps a service error to its HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrInvalidID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {"detail": ...}. Internal errors are logged and
// reported with a generic detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	detail := err.Error()

	log := logrus.WithFields(logrus.Fields{
		"error":      err,
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	})
	switch status {
	case http.StatusInternalServerError:
		log.Error("Request failed")
		detail = "Internal server error"
	case http.StatusBadGateway:
		log.Warn("Upstream provider failed")
	default:
		log.Debug("Request rejected")
	}

	Detail(w, r, status, detail)
}

// Detail renders a {"detail": ...} body with status.
func Detail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": detail})
}

// Data renders a {"data": ...} envelope with status.
func Data(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"data": data})
}
