package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPut_SendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/uploads/u1/a.png" || r.URL.Query().Get("access") != "public" {
			t.Errorf("unexpected url %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("x-content-type") != "image/png" {
			t.Errorf("missing headers")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "png" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte(`{"url":"https://cdn/uploads/u1/a.png","pathname":"uploads/u1/a.png","contentType":"image/png"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", nil)
	obj, err := c.Put(context.Background(), "uploads/u1/a.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.URL != "https://cdn/uploads/u1/a.png" {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestPut_NotConfigured(t *testing.T) {
	c := NewClient("http://unused", "", nil)
	if _, err := c.Put(context.Background(), "x", "image/png", strings.NewReader("")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewPathname_SanitizesName(t *testing.T) {
	p := NewPathname("uploads/u1", "../mi foto (1).png")
	if !strings.HasPrefix(p, "uploads/u1/") {
		t.Fatalf("unexpected prefix %s", p)
	}
	if !strings.HasSuffix(p, "-mi_foto_1_.png") {
		t.Fatalf("unexpected name %s", p)
	}
	if strings.Contains(p, "..") {
		t.Fatalf("pathname must not escape prefix: %s", p)
	}
}
