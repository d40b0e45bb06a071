package sanity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return NewWithEndpoint(url, time.Second, 3, time.Millisecond, nil)
}

func TestQuerySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != `*[_type == "product"]` {
			t.Errorf("unexpected query: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{{"_id": "p1"}}})
	}))
	defer server.Close()

	raw, err := testClient(server.URL).Query(context.Background(), `*[_type == "product"]`, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	var docs []struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &docs); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "p1" {
		t.Fatalf("unexpected result: %+v", docs)
	}
}

func TestQueryEncodesParamsAsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$productId"); got != `"p1"` {
			t.Errorf("expected JSON-encoded param, got %q", got)
		}
		if got := r.URL.Query().Get("$ids"); got != `["v1","v2"]` {
			t.Errorf("expected JSON-encoded list param, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": nil})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Query(context.Background(), "q", map[string]any{
		"productId": "p1",
		"ids":       []string{"v1", "v2"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
}

func TestQueryRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			json.NewEncoder(w).Encode(map[string]any{"result": 7})
		}
	}))
	defer server.Close()

	raw, err := testClient(server.URL).Query(context.Background(), "count(*)", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if string(raw) != "7" {
		t.Fatalf("unexpected result: %s", raw)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestQueryExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Query(context.Background(), "count(*)", nil)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestQueryDoesNotRetryBadRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Query(context.Background(), "count(*)", nil)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestQuerySendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": nil})
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.token = "sk-token"

	if _, err := client.Query(context.Background(), "q", nil); err != nil {
		t.Fatalf("query: %v", err)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": 0})
	}))
	defer server.Close()

	if err := testClient(server.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
