package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imageflow/internal/logger"
	"imageflow/internal/models"
	"imageflow/internal/pipeline"
)

// RecordStore is the slice of the storage contract the HTTP boundary consumes.
type RecordStore interface {
	CreateImage(ctx context.Context, originalName, storedPath string) (*models.ImageRecord, error)
	GetImage(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error)
	ListImages(ctx context.Context) ([]models.ImageRecord, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Enqueuer submits ingestion jobs; enqueueing is fire-and-forget.
type Enqueuer interface {
	Enqueue(recordID uuid.UUID, storedPath, originalName string)
}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	db     RecordStore
	jobs   Enqueuer
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func NewServer(cfg *models.Config, db RecordStore, jobs Enqueuer) *Server {
	r := gin.Default()

	s := &Server{cfg: cfg, router: r, db: db, jobs: jobs}

	r.GET("/", s.handleHealth)
	r.POST("/api/images", s.handleUpload)
	r.GET("/api/images", s.handleList)
	r.GET("/api/images/:id", s.handleGetImage)
	r.GET("/api/images/:id/thumbnails/:size", s.handleThumbnail)
	r.GET("/api/stats", s.handleStats)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": "success", "data": data, "error": nil})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "data": nil, "error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"message": "Image Processing API is running"})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No file part")
		return
	}
	if file.Filename == "" {
		respondError(c, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		respondError(c, http.StatusBadRequest, "Unsupported file type")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		logger.S.Errorw("upload dir unavailable", "op", op, "error", err)
		respondError(c, http.StatusInternalServerError, "storage unavailable")
		return
	}

	storedName := fmt.Sprintf("%s_%s", pipeline.TimestampToken(time.Now()), pipeline.SanitizeFilename(file.Filename))
	storedPath := filepath.Join(s.cfg.UploadDir, storedName)

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	defer src.Close()

	dst, err := os.Create(storedPath)
	if err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(storedPath)
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	rec, err := s.db.CreateImage(c.Request.Context(), file.Filename, storedPath)
	if err != nil {
		// No record exists to reference the file, so keep the upload dir clean.
		os.Remove(storedPath)
		logger.S.Errorw("record creation failed", "op", op, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create record")
		return
	}

	s.jobs.Enqueue(rec.ID, storedPath, file.Filename)

	respondSuccess(c, http.StatusAccepted, gin.H{
		"image_id":      rec.ID.String(),
		"original_name": rec.OriginalName,
		"status":        rec.Status,
	})
}

func (s *Server) handleList(c *gin.Context) {
	const op = "server.handleList"

	recs, err := s.db.ListImages(c.Request.Context())
	if err != nil {
		logger.S.Errorw("list failed", "op", op, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to list images")
		return
	}

	data := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		data = append(data, gin.H{
			"image_id":      rec.ID.String(),
			"original_name": rec.OriginalName,
			"status":        rec.Status,
			"processed_at":  rec.ProcessedAt,
			"thumbnails":    thumbnailURLs(&rec),
		})
	}
	respondSuccess(c, http.StatusOK, data)
}

func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", op, err))
		return
	}

	rec, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "Image not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"image_id":      rec.ID.String(),
		"original_name": rec.OriginalName,
		"status":        rec.Status,
		"created_at":    rec.CreatedAt,
		"processed_at":  rec.ProcessedAt,
		"metadata":      rec.Metadata,
		"thumbnails":    thumbnailURLs(rec),
		"caption":       rec.Caption,
	})
}

func (s *Server) handleThumbnail(c *gin.Context) {
	size := c.Param("size")
	if size != "small" && size != "medium" {
		respondError(c, http.StatusBadRequest, "Invalid size")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid image id")
		return
	}

	rec, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil || rec.Thumbnails == nil {
		respondError(c, http.StatusNotFound, "Thumbnail not found")
		return
	}
	path, ok := rec.Thumbnails[size]
	if !ok {
		respondError(c, http.StatusNotFound, "Thumbnail not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(c, http.StatusNotFound, "File missing")
		return
	}

	c.File(path)
}

func (s *Server) handleStats(c *gin.Context) {
	const op = "server.handleStats"

	stats, err := s.db.Stats(c.Request.Context())
	if err != nil {
		logger.S.Errorw("stats failed", "op", op, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// thumbnailURLs maps size labels to API routes once thumbnails exist.
func thumbnailURLs(rec *models.ImageRecord) gin.H {
	out := gin.H{}
	for label := range rec.Thumbnails {
		out[label] = fmt.Sprintf("/api/images/%s/thumbnails/%s", rec.ID, label)
	}
	return out
}
