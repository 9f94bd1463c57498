package docsystem

import (
	"context"
	"log/slog"

	models "drivemirror/internal/domain/models/docsystem"
	docsysRepo "drivemirror/internal/domain/repositories/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// treeService implements the TreeService interface
type treeService struct {
	folderRepo   docsysRepo.FolderRepository
	documentRepo docsysRepo.DocumentRepository
	logger       *slog.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(
	folderRepo docsysRepo.FolderRepository,
	documentRepo docsysRepo.DocumentRepository,
	logger *slog.Logger,
) docsysSvc.TreeService {
	return &treeService{
		folderRepo:   folderRepo,
		documentRepo: documentRepo,
		logger:       logger,
	}
}

// GetTenantTree builds and returns the nested folder/document tree of a tenant's mirror
func (s *treeService) GetTenantTree(ctx context.Context, tenantID string) (*models.TreeNode, error) {
	allFolders, err := s.folderRepo.GetAllByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// Metadata only, no content
	allDocuments, err := s.documentRepo.GetAllMetadataByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tree := buildTree(allFolders, allDocuments)

	s.logger.Debug("tenant tree built",
		"tenant_id", tenantID,
		"folder_count", len(allFolders),
		"document_count", len(allDocuments),
	)

	return tree, nil
}

// buildTree nests folders and documents in three passes. Items whose parent
// is missing from the listing are placed at the root.
func buildTree(folders []models.Folder, documents []models.Document) *models.TreeNode {
	folderMap := make(map[string]*models.FolderTreeNode, len(folders))

	// First pass: create all folder nodes
	for _, folder := range folders {
		folderMap[folder.ID] = &models.FolderTreeNode{
			ID:        folder.ID,
			Name:      folder.Name,
			ParentID:  folder.ParentID,
			Mirrored:  folder.IsMirrored(),
			CreatedAt: folder.CreatedAt,
			Folders:   []*models.FolderTreeNode{},
			Documents: []models.DocumentTreeNode{},
		}
	}

	// Second pass: connect children to parents
	rootFolders := make([]*models.FolderTreeNode, 0)
	for _, folder := range folders {
		node := folderMap[folder.ID]
		if folder.ParentID != nil {
			if parent, exists := folderMap[*folder.ParentID]; exists {
				parent.Folders = append(parent.Folders, node)
				continue
			}
		}
		rootFolders = append(rootFolders, node)
	}

	// Third pass: add documents to their folders
	rootDocuments := make([]models.DocumentTreeNode, 0)
	for _, doc := range documents {
		docNode := models.DocumentTreeNode{
			ID:          doc.ID,
			Title:       doc.Title,
			FolderID:    doc.FolderID,
			StorageKind: doc.StorageKind,
			Format:      doc.Format,
			WordCount:   doc.WordCount,
			UpdatedAt:   doc.UpdatedAt,
		}
		if doc.FolderID != nil {
			if parent, exists := folderMap[*doc.FolderID]; exists {
				parent.Documents = append(parent.Documents, docNode)
				continue
			}
		}
		rootDocuments = append(rootDocuments, docNode)
	}

	return &models.TreeNode{
		Folders:   rootFolders,
		Documents: rootDocuments,
	}
}
