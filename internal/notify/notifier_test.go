package notify

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeSnapshot(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_2024-03-09_140507.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClient_Notify(t *testing.T) {
	snapshot := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

	var gotMethod string
	var gotHeaders http.Header
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-token", "d730a87e9ba9")
	path := writeSnapshot(t, snapshot)

	if err := client.Notify(path); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if !bytes.Equal(gotBody, snapshot) {
		t.Errorf("body = % x, want raw snapshot bytes", gotBody)
	}

	headerTests := []struct {
		key  string
		want string
	}{
		{key: "Accept", want: "*/*"},
		{key: "Content-Type", want: "image/jpg"},
		{key: "Fingerprint", want: "d730a87e9ba9"},
		{key: "Token", want: "secret-token"},
	}
	for _, tt := range headerTests {
		if got := gotHeaders.Get(tt.key); got != tt.want {
			t.Errorf("header %s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestClient_Notify_RejectedUpload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "wrong", "fp")
	path := writeSnapshot(t, []byte("jpg"))

	if err := client.Notify(path); err == nil {
		t.Error("Notify() error = nil, want error for 401 response")
	}
}

func TestClient_Notify_MissingFile(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "tok", "fp")

	if err := client.Notify(filepath.Join(t.TempDir(), "absent.jpg")); err == nil {
		t.Error("Notify() error = nil, want error for missing file")
	}
}

func TestClient_Notify_NoRetry(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "tok", "fp")
	path := writeSnapshot(t, []byte("jpg"))

	if err := client.Notify(path); err == nil {
		t.Fatal("Notify() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("upload attempts = %d, want exactly 1 (no retries)", calls)
	}
}
