package googledrive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"

	"drivemirror/internal/config"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

const (
	mimeGoogleDoc    = "application/vnd.google-apps.document"
	mimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlides = "application/vnd.google-apps.presentation"

	mimeHTML  = "text/html"
	mimePlain = "text/plain"
	// Sheets only export HTML as a zip of one page per sheet
	mimeZip = "application/zip"
)

type exportFormat struct {
	mimeType string
	ext      string
}

var richExports = map[string]string{
	mimeGoogleDoc:    mimeHTML,
	mimeGoogleSheet:  mimeZip,
	mimeGoogleSlides: mimePlain,
}

var fallbackExports = map[string]exportFormat{
	mimeGoogleDoc:    {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	mimeGoogleSheet:  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	mimeGoogleSlides: {"application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
}

// ExportRichContent exports a Google-native file as HTML (documents and
// spreadsheets) or plain text (presentations).
func (c *Client) ExportRichContent(ctx context.Context, file docsysSvc.RemoteFile) docsysSvc.ExportResult {
	ctx, span := c.startFileSpan(ctx, "googledrive.export_rich", file)
	defer span.End()

	target, ok := richExports[file.MimeType]
	if !ok {
		return docsysSvc.ExportResult{
			Status: docsysSvc.RemoteClientError,
			Error:  fmt.Sprintf("%s has no rich export", file.MimeType),
		}
	}

	data, _, err := c.export(ctx, file.ID, target)
	if err != nil {
		status, msg := fail(span, err)
		return docsysSvc.ExportResult{Status: status, Error: msg}
	}
	span.SetAttributes(attribute.Int("drive.bytes", len(data)))

	if target != mimeZip {
		return docsysSvc.ExportResult{Status: docsysSvc.RemoteSuccess, Content: string(data), ContentType: target}
	}

	markup, err := htmlFromZip(data)
	if err != nil {
		fail(span, err)
		return docsysSvc.ExportResult{Status: docsysSvc.RemoteClientError, Error: err.Error()}
	}
	return docsysSvc.ExportResult{Status: docsysSvc.RemoteSuccess, Content: markup, ContentType: mimeHTML}
}

// ExportFallbackBinary exports a Google-native file in its Office format.
func (c *Client) ExportFallbackBinary(ctx context.Context, file docsysSvc.RemoteFile) docsysSvc.BinaryResult {
	ctx, span := c.startFileSpan(ctx, "googledrive.export_fallback", file)
	defer span.End()

	format, ok := fallbackExports[file.MimeType]
	if !ok {
		return docsysSvc.BinaryResult{
			Status: docsysSvc.RemoteClientError,
			Error:  fmt.Sprintf("%s has no binary export", file.MimeType),
		}
	}

	data, _, err := c.export(ctx, file.ID, format.mimeType)
	if err != nil {
		status, msg := fail(span, err)
		return docsysSvc.BinaryResult{Status: status, Error: msg}
	}

	name := file.Name
	if !strings.HasSuffix(strings.ToLower(name), format.ext) {
		name += format.ext
	}
	return docsysSvc.BinaryResult{
		Status:   docsysSvc.RemoteSuccess,
		Content:  data,
		Name:     name,
		MimeType: format.mimeType,
	}
}

// DownloadRaw downloads an uploaded (non-Google) file verbatim.
func (c *Client) DownloadRaw(ctx context.Context, file docsysSvc.RemoteFile) docsysSvc.BinaryResult {
	ctx, span := c.startFileSpan(ctx, "googledrive.download", file)
	defer span.End()

	var (
		data        []byte
		contentType string
	)
	err := c.do(ctx, func(ctx context.Context) error {
		resp, err := c.service.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		contentType = resp.Header.Get("Content-Type")
		data, err = readLimited(resp.Body, config.MaxImportFileSize)
		return err
	})
	if err != nil {
		status, msg := fail(span, err)
		return docsysSvc.BinaryResult{Status: status, Error: msg}
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = contentType
	}
	span.SetAttributes(attribute.Int("drive.bytes", len(data)))
	return docsysSvc.BinaryResult{
		Status:   docsysSvc.RemoteSuccess,
		Content:  data,
		Name:     file.Name,
		MimeType: mimeType,
	}
}

func (c *Client) export(ctx context.Context, fileID, mimeType string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)
	err := c.do(ctx, func(ctx context.Context) error {
		resp, err := c.service.Files.Export(fileID, mimeType).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		contentType = resp.Header.Get("Content-Type")
		data, err = readLimited(resp.Body, config.MaxImportFileSize)
		return err
	})
	return data, contentType, err
}

// htmlFromZip joins the per-sheet pages of a spreadsheet HTML export into one
// document, each sheet under its own heading when there are several.
func htmlFromZip(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read export archive: %w", err)
	}

	var pages []*zip.File
	for _, f := range zr.File {
		if strings.EqualFold(path.Ext(f.Name), ".html") {
			pages = append(pages, f)
		}
	}
	if len(pages) == 0 {
		return "", errors.New("export archive holds no html pages")
	}

	var b strings.Builder
	for _, f := range pages {
		body, err := zipPageBody(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		if len(pages) > 1 {
			title := strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name))
			fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(title))
		}
		b.WriteString(body)
	}
	return b.String(), nil
}

func zipPageBody(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(rc, config.MaxImportFileSize))
	if err != nil {
		return "", err
	}
	return doc.Find("body").Html()
}
