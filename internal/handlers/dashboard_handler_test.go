package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/services"
)

type stubDashboardRepo struct {
	lastScope *uuid.UUID
	stats     models.DashboardStats
}

func (r *stubDashboardRepo) Stats(_ context.Context, agentID *uuid.UUID) (*models.DashboardStats, error) {
	r.lastScope = agentID
	copied := r.stats
	return &copied, nil
}

func newDashboardApp(repo *stubDashboardRepo, principal services.Principal) *fiber.App {
	handler := NewDashboardHandler(repo)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", principal.ID.String())
		c.Locals("userName", principal.Name)
		c.Locals("role", principal.Role)
		return c.Next()
	})
	app.Get("/api/dashboard/stats", handler.Stats)
	return app
}

func TestDashboardStatsScopedToAgent(t *testing.T) {
	agent := agentPrincipal("Dina")
	repo := &stubDashboardRepo{stats: models.DashboardStats{
		TotalConversations:     4,
		UnrepliedConversations: 2,
		TopTags:                []models.TagCount{{Tag: "hot-lead", Count: 3}},
	}}
	app := newDashboardApp(repo, agent)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard/stats", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if repo.lastScope == nil || *repo.lastScope != agent.ID {
		t.Fatal("expected stats scoped to the calling agent")
	}

	var got models.DashboardStats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.TotalConversations != 4 || got.UnrepliedConversations != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if len(got.TopTags) != 1 || got.TopTags[0].Tag != "hot-lead" {
		t.Fatalf("unexpected tags: %+v", got.TopTags)
	}
}

func TestDashboardStatsAdminSeesEverything(t *testing.T) {
	admin := services.Principal{ID: uuid.New(), Name: "Root", Role: models.RoleAdmin}
	repo := &stubDashboardRepo{}
	app := newDashboardApp(repo, admin)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard/stats", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if repo.lastScope != nil {
		t.Fatal("expected unscoped stats for an admin")
	}
}
