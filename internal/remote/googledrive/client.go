// Package googledrive adapts the Google Drive v3 API to the mirror's
// RemoteStore and ImageFetcher interfaces.
package googledrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

const tracerName = "drivemirror/internal/remote/googledrive"

var errTooLarge = errors.New("response exceeds size limit")

// Config holds the Drive client settings.
type Config struct {
	// CredentialsFile is a service-account or authorized-user JSON file.
	// CredentialsJSON takes precedence when set.
	CredentialsFile string
	CredentialsJSON []byte

	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryDelay        time.Duration

	// Endpoint overrides the API base URL
	Endpoint string
}

// Client is a read-only Drive client. Every API call waits on a shared
// request limiter and retries transient failures.
type Client struct {
	service    *drive.Service
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	tracer     trace.Tracer
	logger     *slog.Logger
}

var (
	_ docsysSvc.RemoteStore  = (*Client)(nil)
	_ docsysSvc.ImageFetcher = (*Client)(nil)
)

// New builds a client authenticated from Google credentials JSON.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	data := cfg.CredentialsJSON
	if len(data) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("google credentials are not configured")
		}
		var err error
		data, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, base)

	creds, err := google.CredentialsFromJSON(authCtx, data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	return NewWithHTTPClient(ctx, oauth2.NewClient(authCtx, creds.TokenSource), cfg, logger)
}

// NewWithHTTPClient builds a client on an already-authenticated HTTP client.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &Client{
		service:    service,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, max(cfg.Burst, 1)),
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: retryDelay,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}, nil
}

// do runs op under the rate limiter, retrying transient failures with
// exponential backoff.
func (c *Client) do(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err = op(ctx); err == nil || !retryable(err) {
			return err
		}
		c.logger.Debug("drive call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errTooLarge) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		_, reason := details(apiErr)
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code >= 500 ||
			(apiErr.Code == http.StatusForbidden && isRateLimitReason(reason))
	}
	// transport failure
	return true
}

// statusOf maps a call error onto the remote status enum.
func statusOf(err error) (docsysSvc.RemoteStatus, string) {
	if errors.Is(err, errTooLarge) {
		return docsysSvc.RemoteClientError, err.Error()
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg, reason := details(apiErr)
		return statusForCode(apiErr.Code, reason), msg
	}
	return docsysSvc.RemoteServerError, err.Error()
}

func statusForCode(code int, reason string) docsysSvc.RemoteStatus {
	switch {
	case code == http.StatusForbidden && isRateLimitReason(reason):
		return docsysSvc.RemoteServerError
	case code == http.StatusForbidden && reason == "exportSizeLimitExceeded":
		return docsysSvc.RemoteClientError
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return docsysSvc.RemoteAuthError
	case code >= 400 && code < 500:
		return docsysSvc.RemoteClientError
	default:
		return docsysSvc.RemoteServerError
	}
}

// details returns the message and first reason of an API error. Media
// downloads only carry the raw JSON body, so it is decoded here.
func details(apiErr *googleapi.Error) (message, reason string) {
	message = apiErr.Message
	if len(apiErr.Errors) > 0 {
		reason = apiErr.Errors[0].Reason
	}
	if message == "" && apiErr.Body != "" {
		var reply struct {
			Error struct {
				Message string `json:"message"`
				Errors  []struct {
					Reason string `json:"reason"`
				} `json:"errors"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(apiErr.Body), &reply) == nil {
			message = reply.Error.Message
			if reason == "" && len(reply.Error.Errors) > 0 {
				reason = reply.Error.Errors[0].Reason
			}
		}
	}
	if message == "" {
		message = http.StatusText(apiErr.Code)
	}
	return message, reason
}

func isRateLimitReason(reason string) bool {
	return reason == "rateLimitExceeded" || reason == "userRateLimitExceeded"
}

// readLimited reads r fully, failing once more than limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", errTooLarge, limit)
	}
	return data, nil
}

func (c *Client) startFileSpan(ctx context.Context, name string, file docsysSvc.RemoteFile) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("drive.file_id", file.ID),
		attribute.String("drive.mime_type", file.MimeType),
	))
}

// fail records err on span and returns its mapped status.
func fail(span trace.Span, err error) (docsysSvc.RemoteStatus, string) {
	status, msg := statusOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	span.SetAttributes(attribute.String("drive.status", status.String()))
	return status, msg
}
