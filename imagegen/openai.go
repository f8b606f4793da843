// Package imagegen generates advert images from text prompts.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	Timeout time.Duration
}

// OpenAI calls the OpenAI images API.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	size    string
	client  *http.Client
}

func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com" // Default value
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.APIKey == "" {
		logrus.Warn("OPENAI_API_KEY environment variable not set. Image generation will not work.")
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		size:    cfg.Size,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type generationRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate returns n images for prompt. Every failure wraps core.ErrUpstream.
func (o *OpenAI) Generate(ctx context.Context, prompt string, n int) ([][]byte, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is not configured on the server", core.ErrUpstream)
	}
	if n <= 0 {
		n = 1
	}

	body, err := json.Marshal(generationRequest{
		Model:          o.model,
		Prompt:         prompt,
		N:              n,
		Size:           o.size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log := logrus.WithFields(logrus.Fields{"model": o.model, "n": n})
	resp, err := o.client.Do(req)
	if err != nil {
		log.WithError(err).Error("Failed to communicate with OpenAI API")
		return nil, fmt.Errorf("%w: failed to communicate with OpenAI API: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid response from OpenAI API (status %d): %v", core.ErrUpstream, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		log.WithField("status", resp.StatusCode).Warn("OpenAI API returned an error")
		return nil, fmt.Errorf("%w: OpenAI API error: %s", core.ErrUpstream, msg)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: OpenAI API returned no images", core.ErrUpstream)
	}

	images := make([][]byte, 0, len(out.Data))
	for _, item := range out.Data {
		var data []byte
		switch {
		case item.B64JSON != "":
			data, err = base64.StdEncoding.DecodeString(item.B64JSON)
		case item.URL != "":
			data, err = o.download(ctx, item.URL)
		default:
			err = fmt.Errorf("empty image entry")
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read generated image: %v", core.ErrUpstream, err)
		}
		images = append(images, data)
	}

	log.Info("Images generated successfully")
	return images, nil
}

func (o *OpenAI) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
