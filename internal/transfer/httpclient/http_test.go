package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestPutUploadsFileBody(t *testing.T) {
	var gotBody []byte
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	dir := t.TempDir()
	localPath := filepath.Join(dir, "payload.txt")
	if err := os.WriteFile(localPath, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Put(context.Background(), Options{BaseURL: srv.URL}, "/upload/payload.txt", localPath)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/upload/payload.txt" {
		t.Errorf("path = %q, want /upload/payload.txt", gotPath)
	}
	if string(gotBody) != "hello world" {
		t.Errorf("body = %q, want %q", gotBody, "hello world")
	}
}

func TestPutNonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	localPath := filepath.Join(dir, "payload.txt")
	os.WriteFile(localPath, []byte("x"), 0o644)

	if err := Put(context.Background(), Options{BaseURL: srv.URL}, "/x", localPath); err == nil {
		t.Error("Put() with a 500 response returned nil error")
	}
}

func TestGetDownloadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote contents"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	localPath := filepath.Join(dir, "out.txt")

	if err := Get(context.Background(), Options{BaseURL: srv.URL}, "/file", localPath); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "remote contents" {
		t.Errorf("downloaded content = %q, want %q", got, "remote contents")
	}
}
