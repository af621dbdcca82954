package plangen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/healixhq/healix/internal/model"
)

func TestClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/plans/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Name != "Alice" || req.Date != "2026-09-01" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(PlanData{
			Summary: "balanced day",
			Meals:   []Meal{{Name: "Breakfast", Calories: 400}},
		})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "m"})
	plan, err := c.Generate(context.Background(), &model.Profile{Name: "Alice"}, "2026-09-01")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.Summary != "balanced day" {
		t.Errorf("summary = %q", plan.Summary)
	}
	if len(plan.Meals) != 1 || plan.Meals[0].Calories != 400 {
		t.Errorf("meals = %+v", plan.Meals)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(PlanData{Summary: "ok"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	plan, err := c.Generate(context.Background(), &model.Profile{Name: "Alice"}, "2026-09-01")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.Summary != "ok" {
		t.Errorf("summary = %q", plan.Summary)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	if _, err := c.Generate(context.Background(), &model.Profile{Name: "Alice"}, "2026-09-01"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientUnconfigured(t *testing.T) {
	c := NewClient(Config{})
	if c.Configured() {
		t.Error("expected unconfigured without API key")
	}
	if _, err := c.Generate(context.Background(), &model.Profile{}, "2026-09-01"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}
