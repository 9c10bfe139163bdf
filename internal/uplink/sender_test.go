package uplink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDeliverPostsToQueuePath(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(204)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, time.Second)
	if err := s.Deliver(context.Background(), "submit-quiz", []byte(`{"q":1}`)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotPath != "/sync/submit-quiz" {
		t.Fatalf("expected queue key in path, got %q", gotPath)
	}
	if gotBody != `{"q":1}` {
		t.Fatalf("expected payload forwarded verbatim, got %q", gotBody)
	}
}

func TestDeliverNonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, time.Second)
	if err := s.Deliver(context.Background(), "save-test-data", []byte("x")); err == nil {
		t.Fatal("expected error on collector 500")
	}
}

func TestDeliverUnreachableCollector(t *testing.T) {
	s := NewSender("127.0.0.1:1", 100*time.Millisecond)
	if err := s.Deliver(context.Background(), "save-test-data", []byte("x")); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNormalizeBase(t *testing.T) {
	if got := normalizeBase("collector:9000/"); got != "http://collector:9000" {
		t.Fatalf("unexpected base %q", got)
	}
	if got := normalizeBase("https://collector:9000"); got != "https://collector:9000" {
		t.Fatalf("unexpected base %q", got)
	}
}
