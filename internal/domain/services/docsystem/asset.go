package docsystem

import "context"

// AssetSink attaches rehosted bytes to the document being converted.
type AssetSink interface {
	// Attach stores the bytes under a fresh unique filename and returns the
	// locally-servable path that should replace the original reference.
	Attach(ctx context.Context, data []byte, contentType, ext string) (string, error)
}
