package quickplan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickplan/internal/api"
	"quickplan/internal/plan"
	"quickplan/internal/web/templates"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	renderer, err := templates.New(templates.Options{})
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	server := api.NewServer(":0", plan.NewService(plan.NewMemoryStore()), renderer)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestPlanRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Healthy(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	urlID, err := client.CreatePlan(ctx, "Team lunch")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if len(urlID) != 8 {
		t.Fatalf("unexpected url id %q", urlID)
	}

	webID, err := client.Join(ctx, urlID, "ann")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if webID == "" {
		t.Fatalf("expected participant id")
	}

	fragment, err := client.ToggleDate(ctx, urlID, webID, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(fragment, "March 2024") || !strings.Contains(fragment, `title="ann"`) {
		t.Fatalf("unexpected calendar fragment: %s", fragment)
	}
}

func TestAPIErrors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.CreatePlan(ctx, strings.Repeat("x", plan.MaxNameLength+1))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 api error, got %v", err)
	}

	urlID, err := client.CreatePlan(ctx, "Dup")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, err := client.Join(ctx, urlID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = client.Join(ctx, urlID, "bob")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 api error, got %v", err)
	}

	_, err = client.Join(ctx, "Zz9Zz9Zz", "carol")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}

func TestDeletePlan(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	urlID, err := client.CreatePlan(ctx, "Cancelled")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if err := client.DeletePlan(ctx, urlID); err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	_, err = client.Join(ctx, urlID, "dan")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("://bad", nil); err == nil {
		t.Fatalf("expected error for invalid url")
	}
}
