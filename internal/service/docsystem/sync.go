package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/lock"
	"drivemirror/internal/metrics"
)

const tracerName = "drivemirror/internal/service/docsystem"

// SyncConfig holds the orchestrator's tunables.
type SyncConfig struct {
	LockTTL time.Duration
	// RunTimeout caps every run, manual or scheduled. Zero means no cap.
	RunTimeout time.Duration
}

// errLeaseLost cancels a run whose lease could not be kept.
var errLeaseLost = errors.New("sync lease lost")

// syncService implements the SyncService interface
type syncService struct {
	remote       docsysSvc.RemoteStore
	reconciler   *FolderReconciler
	importer     *FileImporter
	documentRepo docsysRepo.DocumentRepository
	locker       lock.Locker
	metrics      *metrics.SyncMetrics
	tracer       trace.Tracer
	cfg          SyncConfig
	logger       *slog.Logger
}

// NewSyncService creates the sync orchestrator
func NewSyncService(
	remote docsysSvc.RemoteStore,
	reconciler *FolderReconciler,
	importer *FileImporter,
	documentRepo docsysRepo.DocumentRepository,
	locker lock.Locker,
	syncMetrics *metrics.SyncMetrics,
	cfg SyncConfig,
	logger *slog.Logger,
) docsysSvc.SyncService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &syncService{
		remote:       remote,
		reconciler:   reconciler,
		importer:     importer,
		documentRepo: documentRepo,
		locker:       locker,
		metrics:      syncMetrics,
		tracer:       otel.Tracer(tracerName),
		cfg:          cfg,
		logger:       logger,
	}
}

func syncLockKey(tenantID string) string {
	return "sync:" + tenantID
}

// Sync runs folder reconciliation then file import for one tenant.
func (s *syncService) Sync(ctx context.Context, req *docsysSvc.SyncRequest) (*docsysSvc.SyncResult, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.TenantID, validation.Required),
	); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	result := docsysSvc.NewSyncResult()
	if req.RootFolderID == "" {
		s.logger.Warn("sync skipped: no root folder configured", "tenant_id", req.TenantID)
		return result.Fail("No remote root folder is configured for this tenant"), nil
	}

	lease, err := s.locker.TryAcquire(ctx, syncLockKey(req.TenantID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			s.metrics.RunRejected()
			return nil, domain.ErrSyncInProgress
		}
		return nil, fmt.Errorf("acquire sync lease: %w", err)
	}
	defer func() {
		// release on a fresh context so a cancelled run still frees the lease
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release sync lease", "tenant_id", req.TenantID, "error", err)
		}
	}()

	ctx, stop := s.holdLease(ctx, lease, req.TenantID)
	defer stop()

	ctx, span := s.tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.Bool("sync.prune", req.Prune),
	))
	defer span.End()

	start := time.Now()
	s.run(ctx, req, result)
	elapsed := time.Since(start)
	if cause := context.Cause(ctx); cause != nil && result.Success {
		result.Fail(fmt.Sprintf("Sync interrupted: %v", cause))
	}

	if result.Success {
		result.Message = result.Summary()
	} else {
		span.SetStatus(codes.Error, result.Message)
	}
	span.SetAttributes(
		attribute.Int("sync.folders_created", result.FoldersCreated),
		attribute.Int("sync.docs_imported", result.DocsCreated+result.DocsConverted),
		attribute.Int("sync.errors", len(result.Errors)),
	)
	s.metrics.ObserveRun(result.Success, runCounts(result), elapsed)

	s.logger.Info("sync finished",
		"tenant_id", req.TenantID,
		"success", result.Success,
		"message", result.Message,
		"errors", len(result.Errors),
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// holdLease bounds the run by RunTimeout and refreshes the lease every third
// of its TTL. The returned context is cancelled if the lease is lost.
func (s *syncService) holdLease(ctx context.Context, lease lock.Lease, tenantID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	stopTimeout := func() {}
	if s.cfg.RunTimeout > 0 {
		ctx, stopTimeout = context.WithTimeout(ctx, s.cfg.RunTimeout)
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(max(s.cfg.LockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(ctx, s.cfg.LockTTL)
				if err == nil {
					continue
				}
				if errors.Is(err, lock.ErrLost) {
					s.logger.Error("sync lease lost, cancelling run", "tenant_id", tenantID)
					cancel(errLeaseLost)
					return
				}
				s.logger.Warn("failed to refresh sync lease", "tenant_id", tenantID, "error", err)
			}
		}
	}()

	return ctx, func() {
		close(done)
		<-finished
		stopTimeout()
		cancel(nil)
	}
}

func (s *syncService) run(ctx context.Context, req *docsysSvc.SyncRequest, result *docsysSvc.SyncResult) {
	folderListing := s.listFolders(ctx, req.RootFolderID)
	if folderListing.Status != docsysSvc.RemoteSuccess {
		result.Fail(fmt.Sprintf("Failed to list remote folders (%s): %s", folderListing.Status, folderListing.Error))
		return
	}

	folderMap := s.reconciler.Reconcile(ctx, req.TenantID, req.RootFolderID, req.UserID, folderListing.Folders, result)
	if req.Prune {
		if err := s.reconciler.Prune(ctx, req.TenantID, folderListing.Folders, result); err != nil {
			s.logger.Error("folder cleanup failed", "tenant_id", req.TenantID, "error", err)
			result.AddError("folder cleanup", err.Error())
		}
	}

	folderIDs := make([]string, 0, len(folderListing.Folders)+1)
	folderIDs = append(folderIDs, req.RootFolderID)
	for _, f := range folderListing.Folders {
		folderIDs = append(folderIDs, f.ID)
	}

	fileListing := s.listFiles(ctx, folderIDs)
	if fileListing.Status != docsysSvc.RemoteSuccess {
		result.Fail(fmt.Sprintf("Failed to list remote files (%s): %s", fileListing.Status, fileListing.Error))
		return
	}

	importCtx, span := s.tracer.Start(ctx, "sync.import_files",
		trace.WithAttributes(attribute.Int("files", len(fileListing.Files))))
	s.importer.ImportAll(importCtx, req.TenantID, req.UserID, fileListing.Files, folderMap, result)
	span.End()
}

func (s *syncService) listFolders(ctx context.Context, rootID string) docsysSvc.FolderListing {
	ctx, span := s.tracer.Start(ctx, "sync.list_folders")
	defer span.End()
	listing := s.remote.ListFolderTree(ctx, rootID)
	span.SetAttributes(attribute.Int("folders", len(listing.Folders)))
	return listing
}

func (s *syncService) listFiles(ctx context.Context, folderIDs []string) docsysSvc.FileListing {
	ctx, span := s.tracer.Start(ctx, "sync.list_files")
	defer span.End()
	return s.remote.ListFilesInFolders(ctx, folderIDs)
}

// ReimportOne re-converts one rich-native document, ignoring timestamps.
func (s *syncService) ReimportOne(ctx context.Context, tenantID, documentID string) (*docsysSvc.ReimportResult, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	if doc.StorageKind != models.StorageKindRichNative {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("only rich-native documents can be re-imported (document is %s)", doc.StorageKind),
		}
	}

	lease, err := s.locker.TryAcquire(ctx, syncLockKey(tenantID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, domain.ErrSyncInProgress
		}
		return nil, fmt.Errorf("acquire sync lease: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release sync lease", "tenant_id", tenantID, "error", err)
		}
	}()

	ctx, stop := s.holdLease(ctx, lease, tenantID)
	defer stop()

	ctx, span := s.tracer.Start(ctx, "sync.reimport", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("document.id", documentID),
	))
	defer span.End()

	if err := s.importer.Reimport(ctx, doc); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("reimport failed", "tenant_id", tenantID, "document_id", documentID, "error", err)
		return &docsysSvc.ReimportResult{Success: false, Error: err.Error()}, nil
	}

	s.logger.Info("document re-imported", "tenant_id", tenantID, "document_id", documentID)
	return &docsysSvc.ReimportResult{
		Success: true,
		Message: fmt.Sprintf("%q re-imported", doc.Title),
	}, nil
}

func runCounts(r *docsysSvc.SyncResult) metrics.RunCounts {
	return metrics.RunCounts{
		FoldersCreated: r.FoldersCreated,
		FoldersUpdated: r.FoldersUpdated,
		FoldersRemoved: r.FoldersRemoved,
		DocsCreated:    r.DocsCreated,
		DocsConverted:  r.DocsConverted,
		DocsUploaded:   r.DocsUploaded,
		DocsUpdated:    r.DocsUpdated,
		DocsSkipped:    r.DocsSkipped,
		Errors:         len(r.Errors),
	}
}
