package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"drivemirror/internal/config"
	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	"drivemirror/internal/domain/repositories"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// FolderMap maps remote folder ids to local folder ids. A missing entry means
// "place at root".
type FolderMap map[string]string

// Resolve returns the local folder id for a remote parent, or nil for root.
func (m FolderMap) Resolve(remoteID string) *string {
	if remoteID == "" {
		return nil
	}
	if local, ok := m[remoteID]; ok {
		id := local
		return &id
	}
	return nil
}

// sortFolders orders folders parents-first with a depth-first walk over each
// folder's first parent. Folders whose ancestor chain loops back on itself are
// returned separately, one slice of remote ids per loop, and left out of the order.
func sortFolders(folders []docsysSvc.RemoteFolder, rootID string) ([]docsysSvc.RemoteFolder, [][]string) {
	const (
		unvisited = iota
		visiting
		done
	)

	byID := make(map[string]docsysSvc.RemoteFolder, len(folders))
	var ids []string
	for _, f := range folders {
		if _, dup := byID[f.ID]; dup || f.ID == "" {
			continue
		}
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	state := make(map[string]int, len(byID))
	cyclic := make(map[string]bool)
	var ordered []docsysSvc.RemoteFolder
	var cycles [][]string
	var path []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		path = append(path, id)

		parent := byID[id].ParentID()
		if _, inSet := byID[parent]; inSet && parent != rootID {
			switch state[parent] {
			case unvisited:
				visit(parent)
			case visiting:
				// parent is on the current path: everything from it onwards is a loop
				start := len(path) - 1
				for path[start] != parent {
					start--
				}
				loop := append([]string(nil), path[start:]...)
				for _, member := range loop {
					cyclic[member] = true
				}
				cycles = append(cycles, loop)
			}
		}

		path = path[:len(path)-1]
		state[id] = done
		if !cyclic[id] {
			ordered = append(ordered, byID[id])
		}
	}

	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return ordered, cycles
}

// FolderReconciler mirrors the remote folder tree into local folders.
type FolderReconciler struct {
	folderRepo   docsysRepo.FolderRepository
	documentRepo docsysRepo.DocumentRepository
	txManager    repositories.TransactionManager
	logger       *slog.Logger
}

// NewFolderReconciler creates a reconciler
func NewFolderReconciler(
	folderRepo docsysRepo.FolderRepository,
	documentRepo docsysRepo.DocumentRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *FolderReconciler {
	return &FolderReconciler{
		folderRepo:   folderRepo,
		documentRepo: documentRepo,
		txManager:    txManager,
		logger:       logger,
	}
}

// Reconcile creates, renames and reparents local folders to match the listing.
// Counters and per-folder errors are recorded on result. The returned map holds
// every folder that now has a local node.
func (r *FolderReconciler) Reconcile(
	ctx context.Context,
	tenantID, rootID, userID string,
	folders []docsysSvc.RemoteFolder,
	result *docsysSvc.SyncResult,
) FolderMap {
	ordered, cycles := sortFolders(folders, rootID)

	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}
	for _, loop := range cycles {
		integrityErr := &domain.DataIntegrityError{
			Message: "folder hierarchy loops back on itself, skipped",
			IDs:     loop,
		}
		r.logger.Warn("skipping cyclic folders", "tenant_id", tenantID, "remote_ids", loop)
		result.AddError(names[loop[0]], integrityErr.Error())
	}

	folderMap := make(FolderMap, len(ordered))
	for _, remote := range ordered {
		localID, err := r.reconcileOne(ctx, tenantID, rootID, userID, remote, folderMap, result)
		if err != nil {
			r.logger.Error("failed to reconcile folder",
				"tenant_id", tenantID,
				"remote_id", remote.ID,
				"error", err,
			)
			result.AddError(folderDisplayName(remote.Name), err.Error())
			continue
		}
		folderMap[remote.ID] = localID
	}

	return folderMap
}

func (r *FolderReconciler) reconcileOne(
	ctx context.Context,
	tenantID, rootID, userID string,
	remote docsysSvc.RemoteFolder,
	folderMap FolderMap,
	result *docsysSvc.SyncResult,
) (string, error) {
	name := folderDisplayName(remote.Name)

	var parentID *string
	if p := remote.ParentID(); p != rootID {
		parentID = folderMap.Resolve(p)
	}

	existing, err := r.folderRepo.GetByRemoteID(ctx, tenantID, remote.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	if existing != nil {
		if existing.Name == name && sameParent(existing.ParentID, parentID) {
			return existing.ID, nil
		}
		existing.Name = name
		existing.ParentID = parentID
		if err := r.folderRepo.Update(ctx, existing); err != nil {
			return "", err
		}
		result.FoldersUpdated++
		return existing.ID, nil
	}

	remoteID := remote.ID
	folder := &models.Folder{
		TenantID: tenantID,
		ParentID: parentID,
		Name:     name,
		RemoteID: &remoteID,
	}
	if userID != "" {
		folder.CreatedBy = &userID
	}
	if err := r.folderRepo.Create(ctx, folder); err != nil {
		return "", err
	}
	result.FoldersCreated++
	return folder.ID, nil
}

// Prune removes mirrored folders whose remote id is no longer listed. Their
// documents are moved to the root first; documents are never deleted.
func (r *FolderReconciler) Prune(
	ctx context.Context,
	tenantID string,
	folders []docsysSvc.RemoteFolder,
	result *docsysSvc.SyncResult,
) error {
	present := make(map[string]bool, len(folders))
	for _, f := range folders {
		present[f.ID] = true
	}

	mirrored, err := r.folderRepo.ListMirrored(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list mirrored folders: %w", err)
	}

	var stale []models.Folder
	for _, f := range mirrored {
		if !present[*f.RemoteID] {
			stale = append(stale, f)
		}
	}
	sortDeepestFirst(stale, mirrored)

	for _, folder := range stale {
		var moved int64
		err := r.txManager.ExecTx(ctx, func(txCtx context.Context) error {
			var err error
			moved, err = r.documentRepo.MoveAllToRoot(txCtx, folder.ID, tenantID)
			if err != nil {
				return err
			}
			return r.folderRepo.Delete(txCtx, folder.ID, tenantID)
		})
		if err != nil {
			r.logger.Error("failed to remove folder",
				"tenant_id", tenantID,
				"folder_id", folder.ID,
				"error", err,
			)
			result.AddError(folder.Name, err.Error())
			continue
		}
		r.logger.Info("removed folder missing remotely",
			"tenant_id", tenantID,
			"folder_id", folder.ID,
			"documents_moved_to_root", moved,
		)
		result.FoldersRemoved++
	}
	return nil
}

// sortDeepestFirst orders folders by their depth in the local tree, deepest first.
func sortDeepestFirst(stale []models.Folder, all []models.Folder) {
	parents := make(map[string]*string, len(all))
	for _, f := range all {
		parents[f.ID] = f.ParentID
	}
	depth := func(id string) int {
		d := 0
		for p := parents[id]; p != nil && d <= len(all); p = parents[*p] {
			d++
		}
		return d
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return depth(stale[i].ID) > depth(stale[j].ID)
	})
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// folderDisplayName trims the remote name to the stored length limit.
func folderDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled folder"
	}
	return truncateRunes(name, config.MaxFolderNameLength)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
