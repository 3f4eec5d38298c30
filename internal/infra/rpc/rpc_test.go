package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolvePath(t *testing.T) {
	doc := map[string]any{
		"result": map[string]any{
			"sync_info": map[string]any{
				"latest_block_height": "12345",
			},
			"peers": []any{"a", "b"},
		},
	}

	v, ok := ResolvePath(doc, "result.sync_info.latest_block_height")
	if !ok || v != "12345" {
		t.Fatalf("expected 12345, got %v ok=%v", v, ok)
	}

	v, ok = ResolvePath(doc, "result.peers.1")
	if !ok || v != "b" {
		t.Fatalf("expected b, got %v ok=%v", v, ok)
	}

	if _, ok := ResolvePath(doc, "result.missing.field"); ok {
		t.Fatal("expected miss on absent path")
	}

	v, ok = ResolvePath(doc, "")
	if !ok {
		t.Fatal("empty path should return the document")
	}
	if _, isMap := v.(map[string]any); !isMap {
		t.Fatalf("expected document, got %T", v)
	}
}

func TestParseHeight(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{"0x10d4f", 68943},
		{"12345", 12345},
		{float64(777), 777},
		{" 42 ", 42},
	}
	for _, c := range cases {
		got, err := ParseHeight(c.in)
		if err != nil {
			t.Fatalf("ParseHeight(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseHeight(%v) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := ParseHeight("not-a-height"); err == nil {
		t.Error("expected error for garbage height")
	}
	if _, err := ParseHeight(true); err == nil {
		t.Error("expected error for bool height")
	}
}

func TestFetchGetAndPost(t *testing.T) {
	var gotMethod, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"result":"0x10"}`))
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)

	out, err := c.Fetch(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("GET fetch: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("expected GET, got %s", gotMethod)
	}
	if v, _ := ResolvePath(out, "result"); v != "0x10" {
		t.Errorf("unexpected result %v", v)
	}

	_, err = c.Fetch(context.Background(), Request{
		URL:       srv.URL,
		Body:      `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`,
		BasicAuth: "user:secret",
	})
	if err != nil {
		t.Fatalf("POST fetch: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotAuth == "" {
		t.Error("expected basic auth header")
	}
}

func TestFetchErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":-32000,"message":"behind"}}`))
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	_, err := c.Fetch(context.Background(), Request{URL: srv.URL})
	if !errors.Is(err, ErrErrorResponse) {
		t.Fatalf("expected ErrErrorResponse, got %v", err)
	}
}

func TestDialCheckRefused(t *testing.T) {
	// Grab a port that is closed by opening and immediately closing a server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.Listener.Addr().String()
	srv.Close()

	if err := DialCheck(addr, 500*time.Millisecond); err == nil {
		t.Fatal("expected dial error on closed port")
	}
}

func TestDialCheckOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if err := DialCheck(srv.Listener.Addr().String(), time.Second); err != nil {
		t.Fatalf("expected open port, got %v", err)
	}
}
