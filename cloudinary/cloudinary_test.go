// cloudinary/cloudinary_test.go
package cloudinary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := New("demo", "test-key", "test-secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	// The uploader keeps its own copy of the configuration.
	svc.client.Config.API.UploadPrefix = srv.URL
	svc.client.Upload.Config.API.UploadPrefix = srv.URL

	return svc, srv
}

func TestUploadVideo(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/video/upload") {
			t.Errorf("unexpected upload path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"public_id": "youtube_abc123",
			"secure_url": "https://res.cloudinary.com/demo/video/upload/youtube_abc123.mp4",
			"bytes": 1048576
		}`))
	})

	url, err := svc.UploadVideo(context.Background(), strings.NewReader("fake video bytes"), "youtube_abc123")
	if err != nil {
		t.Fatalf("UploadVideo returned error: %v", err)
	}
	if url != "https://res.cloudinary.com/demo/video/upload/youtube_abc123.mp4" {
		t.Errorf("unexpected URL: %q", url)
	}
}

func TestUploadReportsBodyError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Invalid video file"}}`))
	})

	_, err := svc.UploadVideo(context.Background(), strings.NewReader("junk"), "youtube_bad")
	if err == nil {
		t.Fatal("expected an error when the API rejects the upload")
	}
	if !strings.Contains(err.Error(), "Invalid video file") && !strings.Contains(err.Error(), "failed") {
		t.Errorf("error does not surface the API message: %v", err)
	}
}

func TestUploadWithoutURLFails(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"public_id": "youtube_abc123"}`))
	})

	if _, err := svc.UploadVideo(context.Background(), strings.NewReader("x"), "youtube_abc123"); err == nil {
		t.Fatal("expected an error when the response carries no secure_url")
	}
}

func TestDestroy(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/video/destroy") {
			t.Errorf("unexpected destroy path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "ok"}`))
	})

	if err := svc.Destroy(context.Background(), "youtube_abc123", "video"); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}
}
