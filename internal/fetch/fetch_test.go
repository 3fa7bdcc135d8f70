package fetch_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mediawiki-watchlist/internal/fetch"
)

func TestFetch_UserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := cl.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if !strings.HasPrefix(gotUA, "bitbar-mediawiki-watchlist/") {
		t.Fatalf("user-agent = %q", gotUA)
	}

	cl, _ = fetch.New(fetch.Options{UserAgent: "custom/1.0"})
	resp, err = cl.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if gotUA != "custom/1.0" {
		t.Fatalf("user-agent = %q, want custom/1.0", gotUA)
	}
}

func TestFetch_NoRetryOnStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl, _ := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	if _, err := cl.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected status error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl, _ := fetch.New(fetch.Options{Timeout: 100 * time.Millisecond})
	_, err := cl.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetch_BadProxy(t *testing.T) {
	if _, err := fetch.New(fetch.Options{ProxyHTTP: "://bad"}); err == nil {
		t.Fatal("expected proxy parse error")
	}
}
