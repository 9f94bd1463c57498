package docsystem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"drivemirror/internal/domain"
	models "drivemirror/internal/domain/models/docsystem"
	"drivemirror/internal/domain/repositories"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
)

// memStore is an in-memory stand-in for the three docsystem tables. ExecTx
// snapshots the tables and restores them when the callback fails.
type memStore struct {
	mu        sync.Mutex
	folders   map[string]models.Folder
	documents map[string]models.Document
	assets    map[string]models.Asset
	now       func() time.Time

	// failures injected by tests, keyed by document title or folder name
	failDocumentWrite map[string]error
}

func newMemStore() *memStore {
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &memStore{
		folders:           make(map[string]models.Folder),
		documents:         make(map[string]models.Document),
		assets:            make(map[string]models.Asset),
		now:               func() time.Time { return clock },
		failDocumentWrite: make(map[string]error),
	}
}

func (s *memStore) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	s.mu.Lock()
	folders := cloneMap(s.folders)
	documents := cloneMap(s.documents)
	assets := cloneMap(s.assets)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.folders, s.documents, s.assets = folders, documents, assets
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) folderRepo() docsysRepo.FolderRepository     { return &memFolderRepo{s} }
func (s *memStore) documentRepo() docsysRepo.DocumentRepository { return &memDocumentRepo{s} }
func (s *memStore) assetRepo() docsysRepo.AssetRepository       { return &memAssetRepo{s} }

func (s *memStore) allDocuments() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]models.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	return docs
}

func (s *memStore) allFolders() []models.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	folders := make([]models.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders
}

func (s *memStore) folderByRemoteID(remoteID string) *models.Folder {
	for _, f := range s.allFolders() {
		if f.RemoteID != nil && *f.RemoteID == remoteID {
			f := f
			return &f
		}
	}
	return nil
}

func (s *memStore) assetsOf(documentID string) []models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Asset
	for _, a := range s.assets {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out
}

type memFolderRepo struct{ s *memStore }

func (r *memFolderRepo) Create(_ context.Context, folder *models.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if folder.ParentID != nil {
		if _, ok := r.s.folders[*folder.ParentID]; !ok {
			return fmt.Errorf("parent folder %s does not exist", *folder.ParentID)
		}
	}
	if folder.RemoteID != nil {
		for _, f := range r.s.folders {
			if f.TenantID == folder.TenantID && f.RemoteID != nil && *f.RemoteID == *folder.RemoteID {
				return &domain.ConflictError{Message: "duplicate remote id", ResourceType: "folder"}
			}
		}
	}
	folder.ID = uuid.NewString()
	folder.CreatedAt = r.s.now()
	folder.UpdatedAt = r.s.now()
	r.s.folders[folder.ID] = *folder
	return nil
}

func (r *memFolderRepo) GetByID(_ context.Context, id, tenantID string) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.folders[id]
	if !ok || f.TenantID != tenantID {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (r *memFolderRepo) GetByRemoteID(_ context.Context, tenantID, remoteID string) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.folders {
		if f.TenantID == tenantID && f.RemoteID != nil && *f.RemoteID == remoteID {
			f := f
			return &f, nil
		}
	}
	return nil, fmt.Errorf("remote folder %s: %w", remoteID, domain.ErrNotFound)
}

func (r *memFolderRepo) Update(_ context.Context, folder *models.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.folders[folder.ID]; !ok {
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
	}
	if folder.ParentID != nil {
		if _, ok := r.s.folders[*folder.ParentID]; !ok {
			return fmt.Errorf("parent folder %s does not exist", *folder.ParentID)
		}
	}
	folder.UpdatedAt = r.s.now()
	r.s.folders[folder.ID] = *folder
	return nil
}

func (r *memFolderRepo) Delete(_ context.Context, id, tenantID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.folders[id]; !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	for _, d := range r.s.documents {
		if d.FolderID != nil && *d.FolderID == id {
			return fmt.Errorf("folder %s still holds document %s", id, d.ID)
		}
	}
	delete(r.s.folders, id)
	for fid, f := range r.s.folders {
		if f.ParentID != nil && *f.ParentID == id {
			f.ParentID = nil
			r.s.folders[fid] = f
		}
	}
	return nil
}

func (r *memFolderRepo) ListMirrored(ctx context.Context, tenantID string) ([]models.Folder, error) {
	all, _ := r.GetAllByTenant(ctx, tenantID)
	var out []models.Folder
	for _, f := range all {
		if f.IsMirrored() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memFolderRepo) GetAllByTenant(_ context.Context, tenantID string) ([]models.Folder, error) {
	var out []models.Folder
	for _, f := range r.s.allFolders() {
		if f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memFolderRepo) GetPath(_ context.Context, folderID *string, tenantID string) (string, error) {
	if folderID == nil {
		return "", nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var parts []string
	for id := folderID; id != nil; {
		f, ok := r.s.folders[*id]
		if !ok {
			return "", fmt.Errorf("folder %s: %w", *id, domain.ErrNotFound)
		}
		parts = append([]string{f.Name}, parts...)
		id = f.ParentID
	}
	path := ""
	for i, p := range parts {
		if i > 0 {
			path += "/"
		}
		path += p
	}
	return path, nil
}

type memDocumentRepo struct{ s *memStore }

func (r *memDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failDocumentWrite[doc.Title]; err != nil {
		return err
	}
	for _, d := range r.s.documents {
		if d.TenantID == doc.TenantID && doc.RemoteRef != "" && d.RemoteRef == doc.RemoteRef {
			return &domain.ConflictError{Message: "duplicate remote ref", ResourceType: "document", ResourceID: d.ID}
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.s.now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = r.s.now()
	}
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *memDocumentRepo) GetByID(_ context.Context, id, tenantID string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[id]
	if !ok || d.TenantID != tenantID {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

func (r *memDocumentRepo) GetByRemoteRef(_ context.Context, tenantID, remoteRef string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.documents {
		if d.TenantID == tenantID && d.RemoteRef == remoteRef {
			d := d
			return &d, nil
		}
	}
	return nil, fmt.Errorf("remote document %s: %w", remoteRef, domain.ErrNotFound)
}

func (r *memDocumentRepo) Update(_ context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failDocumentWrite[doc.Title]; err != nil {
		return err
	}
	existing, ok := r.s.documents[doc.ID]
	if !ok {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = r.s.now()
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *memDocumentRepo) SetTimestamps(_ context.Context, id, tenantID string, createdAt, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[id]
	if !ok || d.TenantID != tenantID {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	r.s.documents[id] = d
	return nil
}

func (r *memDocumentRepo) MoveAllToRoot(_ context.Context, folderID, tenantID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, d := range r.s.documents {
		if d.TenantID == tenantID && d.FolderID != nil && *d.FolderID == folderID {
			d.FolderID = nil
			r.s.documents[id] = d
			n++
		}
	}
	return n, nil
}

func (r *memDocumentRepo) GetAllMetadataByTenant(_ context.Context, tenantID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range r.s.allDocuments() {
		if d.TenantID == tenantID {
			d.Content = ""
			out = append(out, d)
		}
	}
	return out, nil
}

type memAssetRepo struct{ s *memStore }

func (r *memAssetRepo) Create(_ context.Context, asset *models.Asset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[asset.DocumentID]; !ok {
		return fmt.Errorf("document %s does not exist", asset.DocumentID)
	}
	asset.ID = uuid.NewString()
	asset.CreatedAt = r.s.now()
	r.s.assets[asset.ID] = *asset
	return nil
}

func (r *memAssetRepo) GetByFilename(_ context.Context, documentID, filename string) (*models.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assets {
		if a.DocumentID == documentID && a.Filename == filename {
			a := a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("asset %s: %w", filename, domain.ErrNotFound)
}

func (r *memAssetRepo) ListByDocument(_ context.Context, documentID string) ([]models.Asset, error) {
	return r.s.assetsOf(documentID), nil
}

func (r *memAssetRepo) DeleteByDocument(_ context.Context, documentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.assets {
		if a.DocumentID == documentID {
			delete(r.s.assets, id)
		}
	}
	return nil
}
