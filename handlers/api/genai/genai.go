package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/api"
	"github.com/sirupsen/logrus"
)

// ImageProvisioner generates an image when img is nil and stores it.
type ImageProvisioner interface {
	ProvisionImage(ctx context.Context, prompt string, img *core.Image) (string, error)
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// HandleGenerateImage generates one image from the prompt and returns its
// public URL.
func HandleGenerateImage(images ImageProvisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Detail(w, r, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}
		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			api.Detail(w, r, http.StatusUnprocessableEntity, "Prompt is required")
			return
		}

		url, err := images.ProvisionImage(r.Context(), prompt, nil)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		logrus.WithField("image_url", url).Info("Generated image")
		api.Data(w, r, http.StatusOK, map[string]string{"imageUrl": url})
	}
}
