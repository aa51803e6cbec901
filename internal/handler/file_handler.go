package handler

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/service"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

type fileOpener interface {
	Open(key, token string) (*service.OpenedFile, error)
}

// FileHandler streams stored uploads.
type FileHandler struct {
	files fileOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(files fileOpener) *FileHandler {
	return &FileHandler{files: files}
}

// Serve godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param key path string true "File key"
// @Param token query string false "Signed preview token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{key} [get]
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	f, err := h.files.Open(key, c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=3600")
	http.ServeContent(c.Writer, c.Request, key, f.LastModified, f)
}
