package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
)

func TestGenerate_B64(t *testing.T) {
	var got generationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("png-bytes"))}},
		})
	}))
	defer server.Close()

	gen := NewOpenAI(Config{APIKey: "test-key", BaseURL: server.URL, Model: "dall-e-3", Size: "1024x1024"})
	images, err := gen.Generate(context.Background(), "Bar Manager", 1)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(images) != 1 || string(images[0]) != "png-bytes" {
		t.Errorf("Generate() = %q", images)
	}
	if got.Prompt != "Bar Manager" || got.N != 1 || got.Model != "dall-e-3" || got.ResponseFormat != "b64_json" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestGenerate_URLFallback(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": server.URL + "/files/1.png"}},
		})
	})
	mux.HandleFunc("/files/1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("downloaded"))
	})

	gen := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})
	images, err := gen.Generate(context.Background(), "p", 1)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if string(images[0]) != "downloaded" {
		t.Errorf("Generate() = %q", images[0])
	}
}

func TestGenerate_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"content policy"}}`))
		}},
		{"invalid body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"no images", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}},
		{"bad base64", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[{"b64_json":"%%%"}]}`))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			gen := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})
			_, err := gen.Generate(context.Background(), "p", 1)
			if !errors.Is(err, core.ErrUpstream) {
				t.Errorf("Generate() error = %v, want ErrUpstream", err)
			}
		})
	}
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	gen := NewOpenAI(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := gen.Generate(context.Background(), "p", 1); !errors.Is(err, core.ErrUpstream) {
		t.Errorf("Generate() error = %v, want ErrUpstream", err)
	}
}
