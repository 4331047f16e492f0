package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-bridge/internal/ingest"
)

func filesFail(c *gin.Context, status int, msg, details string) {
	body := gin.H{"error": msg}
	if details != "" {
		body["details"] = details
	}
	c.JSON(status, body)
}

// ProcessFiles turns every multipart "files" part into a ProcessedDocument.
func (h *Handler) ProcessFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		filesFail(c, http.StatusBadRequest, "Invalid multipart form", err.Error())
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		filesFail(c, http.StatusBadRequest, "No files provided", "")
		return
	}

	limit := h.Cfg.UploadMaxBytes
	uploads := make([]ingest.Upload, 0, len(files))
	for _, fh := range files {
		if limit > 0 && fh.Size > limit {
			filesFail(c, http.StatusBadRequest, "File too large",
				fmt.Sprintf("%s is %d bytes, the limit is %d", fh.Filename, fh.Size, limit))
			return
		}
		uploads = append(uploads, uploadFromHeader(fh))
	}

	docs, err := h.Ingest.ProcessBatch(c.Request.Context(), uploads)
	if err != nil {
		if errors.Is(err, ingest.ErrTooLarge) {
			filesFail(c, http.StatusBadRequest, "File too large", err.Error())
			return
		}
		slog.ErrorContext(c.Request.Context(), "file processing failed", "files", len(uploads), "err", err)
		filesFail(c, http.StatusInternalServerError, "Error processing files", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   docs,
	})
}

func uploadFromHeader(fh *multipart.FileHeader) ingest.Upload {
	return ingest.Upload{
		Filename: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
