// dalle_test.go
package dalle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)

	config := DefaultConfig()
	config.APIKey = "test-key"
	config.BaseURL = srv.URL

	return New(config), srv
}

func TestGenerateHostedURL(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/texttoimage" {
			t.Errorf("path = %q, want /texttoimage", r.URL.Path)
		}
		if got := r.Header.Get("X-RapidAPI-Key"); got != "test-key" {
			t.Errorf("X-RapidAPI-Key = %q, want %q", got, "test-key")
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request body: %v", err)
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if req.Text != "un chat sur la lune" {
			t.Errorf("text = %q, want %q", req.Text, "un chat sur la lune")
		}
		if req.Width != 512 || req.Height != 512 {
			t.Errorf("size = %dx%d, want 512x512", req.Width, req.Height)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"generated_image": "https://images.example/cat.png", "status": true}`)
	})
	defer srv.Close()

	img, err := client.Generate(context.Background(), "un chat sur la lune")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if img.URL != "https://images.example/cat.png" {
		t.Errorf("URL = %q, want %q", img.URL, "https://images.example/cat.png")
	}
	if img.Data != nil {
		t.Errorf("Data = %d bytes, want nil", len(img.Data))
	}
}

func TestGenerateBase64(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "b64_json field",
			body: fmt.Sprintf(`{"b64_json": %q}`, encoded),
		},
		{
			name: "bare data field",
			body: fmt.Sprintf(`{"data": %q}`, encoded),
		},
		{
			name: "data URI",
			body: fmt.Sprintf(`{"data": "data:image/png;base64,%s"}`, encoded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			})
			defer srv.Close()

			img, err := client.Generate(context.Background(), "anything")
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if img.URL != "" {
				t.Errorf("URL = %q, want empty", img.URL)
			}
			if string(img.Data) != string(pngBytes) {
				t.Errorf("Data = %v, want %v", img.Data, pngBytes)
			}
		})
	}
}

func TestGenerateUnrecognizedPayload(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": false, "message": "busy"}`)
	})
	defer srv.Close()

	if _, err := client.Generate(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for unrecognized payload, got nil")
	}
}

func TestGenerateServerError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "invalid key"}`, http.StatusUnauthorized)
	})
	defer srv.Close()

	if _, err := client.Generate(context.Background(), "anything"); err == nil {
		t.Fatal("expected error on HTTP 401, got nil")
	}
}
