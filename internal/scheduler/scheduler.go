// Package scheduler runs each tenant's sync on its cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"drivemirror/internal/domain"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/tenants"
)

// Scheduler triggers background syncs. Overlap across processes is prevented
// by the sync lease; overlap within this process by SkipIfStillRunning.
type Scheduler struct {
	cron    *cron.Cron
	sync    docsysSvc.SyncService
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	jobs   int
}

// New registers a job for every tenant with a schedule. runTimeout bounds a
// single run.
func New(syncSvc docsysSvc.SyncService, registry *tenants.Registry, runTimeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sync:    syncSvc,
		timeout: runTimeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, t := range registry.All() {
		if t.Schedule == "" {
			continue
		}
		tenant := t
		if _, err := s.cron.AddFunc(tenant.Schedule, func() { s.RunTenant(s.ctx, tenant) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule tenant %q: %w", tenant.ID, err)
		}
		s.jobs++
		logger.Info("sync scheduled", "tenant_id", tenant.ID, "schedule", tenant.Schedule)
	}
	return s, nil
}

// Jobs returns the number of scheduled tenants
func (s *Scheduler) Jobs() int {
	return s.jobs
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running syncs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunTenant runs one sync for a tenant and logs the outcome.
func (s *Scheduler) RunTenant(ctx context.Context, t tenants.Tenant) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.sync.Sync(ctx, &docsysSvc.SyncRequest{
		TenantID:     t.ID,
		RootFolderID: t.RootFolderID,
		UserID:       t.CreatedBy,
		Prune:        t.Prune,
	})
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		s.logger.Info("scheduled sync skipped, another run holds the lease", "tenant_id", t.ID)
	case err != nil:
		s.logger.Error("scheduled sync failed", "tenant_id", t.ID, "error", err)
	case !result.Success:
		s.logger.Warn("scheduled sync unsuccessful", "tenant_id", t.ID, "message", result.Message)
	default:
		s.logger.Info("scheduled sync finished",
			"tenant_id", t.ID,
			"message", result.Message,
			"errors", len(result.Errors),
		)
	}
}
