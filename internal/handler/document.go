package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	models "drivemirror/internal/domain/models/docsystem"
	docsysSvc "drivemirror/internal/domain/services/docsystem"
	"drivemirror/internal/httputil"
)

// DocumentHandler handles HTTP requests for mirrored documents
type DocumentHandler struct {
	documentService docsysSvc.DocumentService
	logger          *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService docsysSvc.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// GetDocument returns a document with its content and computed path
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	doc, err := h.documentService.GetDocument(r.Context(), r.PathValue("id"), tenantID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// LinkDocument registers a remote file without mirroring it.
// A remote ref that is already linked answers 409 with the existing document.
func (h *DocumentHandler) LinkDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req docsysSvc.LinkDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.TenantID = tenantID
	req.UserID = httputil.GetUserID(r)

	doc, err := h.documentService.LinkDocument(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, err, func(id string) (*models.Document, error) {
			return h.documentService.GetDocument(r.Context(), id, tenantID)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// DownloadFile streams the attached binary of a document
func (h *DocumentHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	obj, err := h.documentService.OpenFile(r.Context(), r.PathValue("id"), tenantID)
	if err != nil {
		handleError(w, err)
		return
	}

	h.stream(w, obj, "attachment", "private, no-cache")
}

// GetAsset serves one rehosted image. The route is public so that markdown
// renderers can load it without credentials.
func (h *DocumentHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	obj, err := h.documentService.OpenAsset(r.Context(), r.PathValue("id"), r.PathValue("filename"))
	if err != nil {
		handleError(w, err)
		return
	}

	// asset filenames are never reused
	h.stream(w, obj, "inline", "public, max-age=31536000, immutable")
}

const contentSecurityPolicy = "default-src 'none'; sandbox"

func (h *DocumentHandler) stream(w http.ResponseWriter, obj *docsysSvc.StoredObject, disposition, cacheControl string) {
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// stored bytes come from remote documents; never let them run on our origin
	w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
	if obj.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": obj.Name}))
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("stream interrupted", "name", obj.Name, "error", err)
	}
}
