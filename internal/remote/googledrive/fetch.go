package googledrive

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"

	"drivemirror/internal/config"
)

// FetchImage downloads a provider-hosted image with the client's credentials.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, string, error) {
	ctx, span := c.tracer.Start(ctx, "googledrive.fetch_image")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}

	var (
		data        []byte
		contentType string
	)
	err = c.do(ctx, func(context.Context) error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := googleapi.CheckResponse(resp); err != nil {
			return err
		}
		contentType = resp.Header.Get("Content-Type")
		data, err = readLimited(resp.Body, config.MaxAssetSize)
		return err
	})
	if err != nil {
		fail(span, err)
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}

	span.SetAttributes(attribute.Int("drive.bytes", len(data)))
	return data, contentType, nil
}
