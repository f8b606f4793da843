package adverts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/api"
	"github.com/FREEWORLD-HUB/group1-advertisement/middleware"
	advertsvc "github.com/FREEWORLD-HUB/group1-advertisement/services/adverts"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes bounds create and replace request bodies when no
// limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// imageFields are the multipart file fields accepted for the advert image.
var imageFields = []string{"image", "flyer"}

// Service is the advert service used by the handlers.
type Service interface {
	Search(ctx context.Context, q advertsvc.Query) ([]*core.Advert, error)
	Similar(ctx context.Context, id string, page advertsvc.Page) ([]*core.Advert, error)
	Get(ctx context.Context, id string) (*core.Advert, error)
	Create(ctx context.Context, owner string, in advertsvc.Input) (*core.Advert, error)
	Replace(ctx context.Context, id, owner string, in advertsvc.Input) (*core.Advert, error)
	Delete(ctx context.Context, id, owner string) error
}

func HandleSearch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		limit, skip, err := pageParams(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		adverts, err := svc.Search(r.Context(), advertsvc.Query{
			Title:       query.Get("title"),
			Description: query.Get("description"),
			Limit:       limit,
			Skip:        skip,
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.Data(w, r, http.StatusOK, adverts)
	}
}

func HandleSimilar(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, skip, err := pageParams(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		adverts, err := svc.Similar(r.Context(), chi.URLParam(r, "id"), advertsvc.Page{Limit: limit, Skip: skip})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.Data(w, r, http.StatusOK, adverts)
	}
}

func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		advert, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.Data(w, r, http.StatusOK, advert)
	}
}

// HandleCreate stores an advert from a multipart form. The caller becomes the
// owner. Without an image file one is generated from the title.
func HandleCreate(svc Service, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := readInput(w, r, maxUploadBytes)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		advert, err := svc.Create(r.Context(), middleware.CallerID(r.Context()), in)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"message": "Advert added successfully", "data": advert})
	}
}

func HandleReplace(svc Service, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := readInput(w, r, maxUploadBytes)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		advert, err := svc.Replace(r.Context(), chi.URLParam(r, "id"), middleware.CallerID(r.Context()), in)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, map[string]any{"message": "Advert replaced successfully", "data": advert})
	}
}

func HandleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id"), middleware.CallerID(r.Context())); err != nil {
			api.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]string{"message": "Advert deleted successfully"})
	}
}

func pageParams(r *http.Request) (limit, skip int, err error) {
	query := r.URL.Query()
	if limit, err = intParam(query.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	if skip, err = intParam(query.Get("skip"), "skip"); err != nil {
		return 0, 0, err
	}
	return limit, skip, nil
}

func intParam(value, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrValidation, name)
	}
	return n, nil
}

// readInput parses the advert form fields and the optional image file.
func readInput(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (advertsvc.Input, error) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	// Multipart is optional; a plain urlencoded form carries no image.
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return advertsvc.Input{}, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrValidation, maxUploadBytes)
		}
		return advertsvc.Input{}, fmt.Errorf("%w: malformed form: %v", core.ErrValidation, err)
	}

	in := advertsvc.Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	for _, key := range core.AttributeKeys {
		if value := r.FormValue(key); value != "" {
			if in.Attributes == nil {
				in.Attributes = core.Attributes{}
			}
			in.Attributes[key] = value
		}
	}

	img, err := readImage(r)
	if err != nil {
		return advertsvc.Input{}, err
	}
	in.Image = img
	return in, nil
}

func readImage(r *http.Request) (*core.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	for _, field := range imageFields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable %s file: %v", core.ErrValidation, field, err)
		}
		return imageFromFile(file, header)
	}
	return nil, nil
}

func imageFromFile(file multipart.File, header *multipart.FileHeader) (*core.Image, error) {
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image: %v", core.ErrValidation, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image file is empty", core.ErrValidation)
	}

	logrus.WithFields(logrus.Fields{"filename": header.Filename, "size": len(data)}).Debug("Received advert image")
	return &core.Image{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}
