package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/internal/config"
	"github.com/jakechorley/shift-bridge/pkg/core/arbiter"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/events"
	"github.com/jakechorley/shift-bridge/pkg/postgres"
)

// Identity is the caller as given on the command line
type Identity struct {
	UserID    string
	Role      string
	CompanyID string
}

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg       *config.Config
	Store     db.Store
	Directory db.Directory
	// Postgres is nil when the memory store is configured
	Postgres *postgres.DB
	Redis    *redis.Client
	Emitter  events.Emitter
	Arbiter  *arbiter.Arbiter
	Identity Identity
	Logger   *zap.Logger
	Ctx      context.Context
	Now      func() time.Time
}

// Viewer resolves the caller identity into a viewer.
// Agency callers get their active facility relationships from the directory.
func (app *AppContext) Viewer() (model.Viewer, error) {
	if app.Identity.UserID == "" {
		return model.Viewer{}, fmt.Errorf("--as-user is required for this command")
	}

	role := model.Role(app.Identity.Role)
	if !role.IsValid() {
		return model.Viewer{}, fmt.Errorf("unknown role %q (want platform_admin, admin, staff, agency_admin or agency_staff)", app.Identity.Role)
	}
	if role != model.RolePlatformAdmin && app.Identity.CompanyID == "" {
		return model.Viewer{}, fmt.Errorf("--as-company is required for role %s", role)
	}

	viewer := model.Viewer{
		UserID:    app.Identity.UserID,
		Role:      role,
		CompanyID: app.Identity.CompanyID,
	}

	if role.IsAgency() {
		facilities, err := app.Directory.ActiveFacilities(app.Ctx, viewer.CompanyID)
		if err != nil {
			return model.Viewer{}, fmt.Errorf("failed to load relationships for %s: %w", viewer.CompanyID, err)
		}
		viewer.Relationships = facilities
	}

	app.Logger.Debug("Resolved viewer",
		zap.String("user_id", viewer.UserID),
		zap.String("role", string(viewer.Role)),
		zap.Int("relationships", len(viewer.Relationships)))

	return viewer, nil
}

// Clock returns the current time, UTC
func (app *AppContext) Clock() time.Time {
	if app.Now != nil {
		return app.Now().UTC()
	}
	return time.Now().UTC()
}
