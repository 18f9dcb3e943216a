package browser

import (
	"context"
	"log/slog"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Controller is the interface for browser automation
type Controller interface {
	Audit(ctx context.Context, site models.SiteDefinition) (*models.AuditResult, error)
	Close() error
}

// NewController creates a new browser controller
func NewController(browserCfg *config.BrowserConfig, auditCfg config.AuditConfig, logger *slog.Logger) (Controller, error) {
	return NewControllerImpl(browserCfg, auditCfg, logger)
}
