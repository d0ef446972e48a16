package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func getReady(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/ready", h.Ready)
	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return resp.StatusCode, body
}

func TestReadyReportsEachDependency(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	status, body := getReady(t, NewHealthHandler("desk", "test", DependencyCheck{"postgres", ok}))
	if status != fiber.StatusOK || body["status"] != "ready" {
		t.Fatalf("expected ready, got %d %v", status, body)
	}

	status, body = getReady(t, NewHealthHandler("desk", "test", DependencyCheck{"postgres", ok}, DependencyCheck{"redis", down}))
	if status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	details := body["error"].(map[string]any)["details"].(map[string]any)
	if details["postgres"] != "ok" || details["redis"] != "connection refused" {
		t.Fatalf("unexpected details %v", details)
	}
}
