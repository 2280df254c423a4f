package finetune

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ki-studio/internal/upstream"
)

func TestClient_CreateAndList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/finetune", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") != "bfl" {
			t.Errorf("missing X-Key")
		}
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.FinetuneComment != "perro" || req.Mode != "character" {
			t.Errorf("unexpected payload %+v", req)
		}
		_, _ = w.Write([]byte(`{"id":"ft-1","polling_url":"https://api/poll?id=ft-1"}`))
	})
	mux.HandleFunc("/v1/my_finetunes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"finetunes":["ft-1","ft-2"]}`))
	})
	mux.HandleFunc("/v1/finetune_details", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"finetune_details":{"finetune_id":"` + r.URL.Query().Get("finetune_id") + `"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "bfl", nil)
	created, err := c.Create(context.Background(), Request{FileData: "zip", FinetuneComment: "perro", Mode: "character"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "ft-1" || created.PollingURL == "" {
		t.Fatalf("unexpected created %+v", created)
	}

	ids, err := c.ListIDs(context.Background())
	if err != nil || len(ids) != 2 {
		t.Fatalf("list: %v %v", ids, err)
	}

	details, err := c.Details(context.Background(), "ft-2")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if string(details) != `{"finetune_id":"ft-2"}` {
		t.Fatalf("unexpected details %s", details)
	}
}

func TestClient_DeleteForwardsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/delete_finetune" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bfl", nil)
	err := c.Delete(context.Background(), "ft-x")
	var upErr *upstream.Error
	if !errors.As(err, &upErr) || upErr.Status != http.StatusNotFound {
		t.Fatalf("expected upstream 404, got %v", err)
	}
}
