package docsystem

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	models "drivemirror/internal/domain/models/docsystem"
	"drivemirror/internal/storage"
)

// AssetPath is the locally-servable path of a rehosted asset.
func AssetPath(documentID, filename string) string {
	return fmt.Sprintf("/api/documents/%s/assets/%s", documentID, filename)
}

func assetKey(documentID, filename string) string {
	return fmt.Sprintf("documents/%s/assets/%s", documentID, filename)
}

func blobKey(documentID, ext string) string {
	return fmt.Sprintf("documents/%s/%s%s", documentID, uuid.NewString(), ext)
}

// storageAssetSink uploads rehosted bytes for one document and remembers the
// asset rows to insert once the document write commits.
type storageAssetSink struct {
	storage    storage.Storage
	documentID string
	assets     []models.Asset
}

func newStorageAssetSink(store storage.Storage, documentID string) *storageAssetSink {
	return &storageAssetSink{storage: store, documentID: documentID}
}

func (s *storageAssetSink) Attach(ctx context.Context, data []byte, contentType, ext string) (string, error) {
	filename := uuid.NewString() + ext
	key := assetKey(s.documentID, filename)

	info, err := s.storage.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	s.assets = append(s.assets, models.Asset{
		DocumentID:  s.documentID,
		Filename:    filename,
		StorageKey:  key,
		ContentType: contentType,
		Size:        info.Size,
	})
	return AssetPath(s.documentID, filename), nil
}

// keys lists the uploaded object keys.
func (s *storageAssetSink) keys() []string {
	keys := make([]string, 0, len(s.assets))
	for _, a := range s.assets {
		keys = append(keys, a.StorageKey)
	}
	return keys
}
