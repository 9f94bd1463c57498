package docsystem

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"drivemirror/internal/config"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

// RefKind classifies an image reference found in exported markup.
type RefKind int

const (
	RefForeign RefKind = iota
	RefInlineEncoded
	RefProviderHosted
)

func (k RefKind) String() string {
	switch k {
	case RefInlineEncoded:
		return "inline_encoded"
	case RefProviderHosted:
		return "provider_hosted"
	default:
		return "foreign"
	}
}

// providerImageHosts serve images embedded in exported documents. They need
// the provider's credentials, so the mirror cannot link to them.
var providerImageHosts = []string{
	".googleusercontent.com",
	"docs.google.com",
	"drive.google.com",
}

// trackingPixelPatterns match beacon images some exports carry.
var trackingPixelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)*google-analytics\.com/`),
	regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)*doubleclick\.net/`),
	regexp.MustCompile(`(?i)^https?://www\.google\.com/(ads|pagead)/`),
	regexp.MustCompile(`(?i)^https?://[^/]*googleusercontent\.com/.*/(pixel|beacon)(\.gif)?(\?|$)`),
}

// imageExtensions lists the raster types the mirror will host. Anything else,
// SVG included, can carry script and is dropped.
var imageExtensions = map[string]string{
	"image/png":    ".png",
	"image/jpeg":   ".jpg",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/tiff":   ".tiff",
	"image/x-icon": ".ico",
}

var errNotAnImage = errors.New("content is not an image")

// ClassifyImageRef decides how a src value is handled.
func ClassifyImageRef(src string) RefKind {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return RefInlineEncoded
	}
	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return RefForeign
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range providerImageHosts {
		if strings.HasPrefix(h, ".") {
			if strings.HasSuffix(host, h) {
				return RefProviderHosted
			}
		} else if host == h {
			return RefProviderHosted
		}
	}
	return RefForeign
}

func isTrackingPixel(s *goquery.Selection) bool {
	src, _ := s.Attr("src")
	for _, p := range trackingPixelPatterns {
		if p.MatchString(src) {
			return true
		}
	}
	w, _ := s.Attr("width")
	h, _ := s.Attr("height")
	return strings.TrimSpace(w) == "1" && strings.TrimSpace(h) == "1"
}

// AssetRehoster rewrites exported markup so its images are owned by the mirror.
type AssetRehoster struct {
	fetcher      docsysSvc.ImageFetcher
	maxAssetSize int64
	logger       *slog.Logger
}

// NewAssetRehoster creates a rehoster. fetcher may be nil, in which case
// provider-hosted images cannot be resolved and are dropped.
func NewAssetRehoster(fetcher docsysSvc.ImageFetcher, logger *slog.Logger) *AssetRehoster {
	return &AssetRehoster{
		fetcher:      fetcher,
		maxAssetSize: config.MaxAssetSize,
		logger:       logger,
	}
}

// Rehost cleans markup and re-homes inline and provider-hosted images into sink.
// A nil sink is a preview: owned references are left as they are.
// A reference that cannot be fetched, decoded or attached is removed.
func (r *AssetRehoster) Rehost(ctx context.Context, markup string, sink docsysSvc.AssetSink) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	// Step 1: styles, scripts and beacons
	doc.Find("style, script, noscript, meta, link").Remove()
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if isTrackingPixel(s) {
			s.Remove()
		}
	})

	// Step 2: images
	var attached, dropped int
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			s.Remove()
			dropped++
			return
		}

		kind := ClassifyImageRef(src)
		if kind == RefForeign || sink == nil {
			return
		}

		path, err := r.rehostOne(ctx, kind, src, sink)
		if err != nil {
			r.logger.Warn("dropping unresolvable image",
				"kind", kind,
				"src", truncateRef(src),
				"error", err,
			)
			s.Remove()
			dropped++
			return
		}
		s.SetAttr("src", path)
		s.RemoveAttr("srcset")
		attached++
	})

	// Step 3: presentational and provider attributes
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("class")
		s.RemoveAttr("id")
		s.RemoveAttr("style")
		if node := s.Get(0); node != nil {
			for _, attr := range append(node.Attr[:0:0], node.Attr...) {
				if strings.HasPrefix(attr.Key, "data-") {
					s.RemoveAttr(attr.Key)
				}
			}
		}
	})

	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to render markup: %w", err)
	}

	if attached > 0 || dropped > 0 {
		r.logger.Debug("rehosted images", "attached", attached, "dropped", dropped)
	}
	return strings.TrimSpace(out), nil
}

func (r *AssetRehoster) rehostOne(ctx context.Context, kind RefKind, src string, sink docsysSvc.AssetSink) (string, error) {
	var (
		data        []byte
		contentType string
		err         error
	)

	switch kind {
	case RefInlineEncoded:
		data, contentType, err = decodeDataURI(src)
	case RefProviderHosted:
		if r.fetcher == nil {
			return "", errors.New("no image fetcher configured")
		}
		data, contentType, err = r.fetcher.FetchImage(ctx, src)
	default:
		return "", fmt.Errorf("reference kind %d is not owned", kind)
	}
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	if int64(len(data)) > r.maxAssetSize {
		return "", fmt.Errorf("image exceeds %d bytes", r.maxAssetSize)
	}

	contentType, ext, err := imageType(contentType, data)
	if err != nil {
		return "", err
	}
	return sink.Attach(ctx, data, contentType, ext)
}

// decodeDataURI decodes data:[<mediatype>][;base64],<payload>.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimSpace(uri)[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", errors.New("malformed data URI")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}

	contentType := ""
	if meta != "" {
		mediaType, _, err := mime.ParseMediaType(meta)
		if err == nil {
			contentType = mediaType
		}
	}

	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
			}
		}
		return data, contentType, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid percent-encoded payload: %w", err)
	}
	return []byte(decoded), contentType, nil
}

// imageType settles the content type and file extension, sniffing the bytes
// when the declared type is missing or generic.
func imageType(declared string, data []byte) (string, string, error) {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: %s", errNotAnImage, contentType)
	}

	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported type %s", errNotAnImage, contentType)
	}
	return contentType, ext, nil
}

func truncateRef(src string) string {
	if len(src) > 80 {
		return src[:80] + "..."
	}
	return src
}
