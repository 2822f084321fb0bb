package creator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", nil); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}

func TestChatSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["message"] != "hello" {
			t.Fatalf("unexpected body %v (%v)", body, err)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Message: "Hi!", Actions: []string{"check_status"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetAccessToken("token")

	resp, err := client.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Message != "Hi!" || len(resp.Actions) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestActivityAndClearHistory(t *testing.T) {
	cleared := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/activity":
			if r.URL.Query().Get("limit") != "5" {
				t.Fatalf("unexpected query %q", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode([]Activity{{ID: 2, Kind: "fees_claimed", Amount: 0.4, Success: true}})
		case "/api/v1/chat/history":
			if r.Method != http.MethodDelete {
				t.Fatalf("unexpected method %s", r.Method)
			}
			cleared = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	records, err := client.Activity(context.Background(), 5)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(records) != 1 || records[0].Kind != "fees_claimed" {
		t.Fatalf("unexpected records %+v", records)
	}
	if err := client.ClearHistory(context.Background()); err != nil || !cleared {
		t.Fatalf("clear history: %v (cleared=%v)", err, cleared)
	}
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/distributions":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "recipient list contains an invalid address or amount"})
		case "/api/v1/wallet":
			http.Error(w, "No wallet configured", http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Distribute(context.Background(), []Recipient{{Address: "bad", Amount: 1}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "recipient list contains an invalid address or amount" {
		t.Fatalf("unexpected distribute error %v", err)
	}

	_, err = client.Wallet(context.Background())
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "No wallet configured" {
		t.Fatalf("unexpected wallet error %v", err)
	}
}
