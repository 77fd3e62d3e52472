package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch req.Action {
		case "get_followers":
			json.NewEncoder(w).Encode(map[string]any{"followers": []map[string]any{
				{"id": 1, "fullName": "Alice A"},
				{"id": 2, "fullName": "Bob B"},
			}})
		case "get_following":
			json.NewEncoder(w).Encode(map[string]any{"following": []map[string]any{
				{"id": 2, "fullName": "Bob B"},
				{"id": 3, "fullName": "Carol C"},
			}})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestResolveDeduplicatesById(t *testing.T) {
	srv := newDirectoryServer(t)
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	users, err := client.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}

	if len(users) != 3 {
		t.Fatalf("expected 3 deduplicated users, got %+v", users)
	}
	for i, want := range []int{1, 2, 3} {
		if users[i].ID != want {
			t.Fatalf("unexpected user order: %+v", users)
		}
	}
}

func TestResolveSurfacesAuthFailure(t *testing.T) {
	srv := newDirectoryServer(t)
	defer srv.Close()

	client := NewClient(srv.URL, "wrong-token")
	if _, err := client.Resolve(context.Background()); err == nil {
		t.Fatal("expected error for rejected token")
	}
}
