package docsystem

import (
	"context"

	"drivemirror/internal/domain/models/docsystem"
)

// TreeService defines operations for building document trees
type TreeService interface {
	// GetTenantTree builds and returns the nested folder/document tree of a tenant's mirror
	GetTenantTree(ctx context.Context, tenantID string) (*docsystem.TreeNode, error)
}
