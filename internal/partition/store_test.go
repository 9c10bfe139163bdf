package partition

import (
	"errors"
	"sync"
	"testing"
)

func TestOpenIdempotent(t *testing.T) {
	reg := NewRegistry(0)
	a := reg.Open("static-v1")
	b := reg.Open("static-v1")
	if a != b {
		t.Fatal("expected the same partition instance for the same name")
	}
	if got := len(reg.Names()); got != 1 {
		t.Fatalf("expected 1 partition, got %d", got)
	}
}

func TestPutGetOverwrite(t *testing.T) {
	p := NewRegistry(0).Open("runtime-v1")

	if err := p.Put("/api/score", Entry{Status: 200, Body: []byte("one")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := p.Put("/api/score", Entry{Status: 200, Body: []byte("two")}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	e, ok := p.Get("/api/score")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(e.Body) != "two" {
		t.Fatalf("expected last write to win, got %q", e.Body)
	}
	if e.StoredAt.IsZero() {
		t.Fatal("expected StoredAt to be set")
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", p.Len())
	}
}

func TestCapacity(t *testing.T) {
	p := NewRegistry(2).Open("static-v1")

	if err := p.Put("/a", Entry{Status: 200}); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := p.Put("/b", Entry{Status: 200}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	err := p.Put("/c", Entry{Status: 200})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	// Overwrites are always allowed at capacity.
	if err := p.Put("/a", Entry{Status: 200, Body: []byte("new")}); err != nil {
		t.Fatalf("overwrite at capacity: %v", err)
	}
}

func TestDeleteAndDrop(t *testing.T) {
	reg := NewRegistry(0)
	p := reg.Open("static-v1")
	reg.Open("static-v0")

	if err := p.Put("/a", Entry{Status: 200}); err != nil {
		t.Fatalf("put: %v", err)
	}
	p.Delete("/a")
	if _, ok := p.Get("/a"); ok {
		t.Fatal("expected entry deleted")
	}

	reg.Drop("static-v0")
	names := reg.Names()
	if len(names) != 1 || names[0] != "static-v1" {
		t.Fatalf("expected only static-v1, got %v", names)
	}
}

func TestConcurrentDistinctKeys(t *testing.T) {
	p := NewRegistry(0).Open("runtime-v1")

	var wg sync.WaitGroup
	keys := []string{"/a", "/b", "/c", "/d"}
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = p.Put(k, Entry{Status: 200, Body: []byte(k)})
			}
		}(k)
	}
	wg.Wait()

	for _, k := range keys {
		e, ok := p.Get(k)
		if !ok || string(e.Body) != k {
			t.Fatalf("key %s: expected its own value, got %q (ok=%v)", k, e.Body, ok)
		}
	}
}
