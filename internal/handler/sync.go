package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/httputil"
	"drivemirror/internal/tenants"
)

// SyncHandler triggers mirror runs on demand
type SyncHandler struct {
	syncService docsysSvc.SyncService
	registry    *tenants.Registry
	logger      *slog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService docsysSvc.SyncService, registry *tenants.Registry, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		registry:    registry,
		logger:      logger,
	}
}

// Sync runs one reconciliation pass for the tenant and returns its result.
// The root folder and the default prune flag come from the tenants file;
// ?prune=true|false overrides the flag for this run.
// A run that fails on remote or configuration problems still answers 200
// with success=false. A held lease answers 409.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	tenant, found := h.registry.Get(tenantID)
	if !found {
		httputil.RespondError(w, http.StatusNotFound, "tenant "+tenantID+" is not configured")
		return
	}

	prune := tenant.Prune
	if raw := r.URL.Query().Get("prune"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "prune must be a boolean")
			return
		}
		prune = parsed
	}

	result, err := h.syncService.Sync(r.Context(), &docsysSvc.SyncRequest{
		TenantID:     tenantID,
		RootFolderID: tenant.RootFolderID,
		UserID:       httputil.GetUserID(r),
		Prune:        prune,
	})
	if err != nil {
		h.logger.Warn("sync request failed", "tenant_id", tenantID, "error", err)
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// Reimport re-converts one rich-native document regardless of timestamps
func (h *SyncHandler) Reimport(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	documentID := r.PathValue("id")
	if documentID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	result, err := h.syncService.ReimportOne(r.Context(), tenantID, documentID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
