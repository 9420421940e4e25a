package proxy

import (
	"sync"
	"testing"
)

func TestRotator_RoundRobin(t *testing.T) {
	r, err := NewRotator([]string{"http://p1:8080", "http://p2:8080", "http://p3:8080"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"p1:8080", "p2:8080", "p3:8080", "p1:8080"}
	for i, host := range want {
		u := r.Next()
		if u == nil || u.Host != host {
			t.Errorf("call %d: expected %s, got %v", i, host, u)
		}
	}
}

func TestRotator_DisabledReturnsNil(t *testing.T) {
	r, err := NewRotator([]string{"http://p1:8080"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Next() != nil {
		t.Error("disabled rotator must return nil")
	}
}

func TestRotator_EmptyListReturnsNil(t *testing.T) {
	r, err := NewRotator(nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Next() != nil {
		t.Error("empty rotator must return nil")
	}
}

func TestRotator_RejectsMalformedEndpoint(t *testing.T) {
	if _, err := NewRotator([]string{"not a url"}, true); err == nil {
		t.Error("expected error for endpoint without scheme")
	}
}

func TestRotator_ConcurrentNext(t *testing.T) {
	t.Parallel()
	r, err := NewRotator([]string{"http://p1:8080", "http://p2:8080"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	counts := make(map[string]int)
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := r.Next()
			mu.Lock()
			counts[u.Host]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["p1:8080"] != 50 || counts["p2:8080"] != 50 {
		t.Errorf("expected an even 50/50 split, got %v", counts)
	}
}
