package app

import (
	"context"

	"github.com/netpulse/client/internal/models"
)

// demoUsers is the fixed local population used when no directory is reachable.
var demoUsers = []models.User{
	{ID: "demo-anna", Name: "Anna", Email: "anna@test.com", Status: models.StatusOnline},
	{ID: "demo-ivan", Name: "Ivan", Email: "ivan@test.com", Status: models.StatusOffline},
	{ID: "demo-maria", Name: "Maria", Email: "maria@test.com", Status: models.StatusStudying},
	{ID: "demo-alexey", Name: "Alexey", Email: "alex@test.com", Status: models.StatusWorking},
}

func seedDemo(ctx context.Context, e *engine) {
	if added := e.identity.Seed(ctx, demoUsers); added > 0 {
		e.logger.Info("seeded demo users", "count", added)
	}
}
