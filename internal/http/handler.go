package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/ocean-wms/internal/adapter/store"
	"go.ngs.io/ocean-wms/internal/domain"
	"go.ngs.io/ocean-wms/internal/usecase"
)

// Service is the map service the handlers call.
type Service interface {
	Handle(ctx context.Context, slug string, values url.Values) (*usecase.Response, error)
	HasCache(ctx context.Context, slug string) (bool, error)
	ClearCache(ctx context.Context, slug string) error
	Update(ctx context.Context, slug string) ([]domain.Layer, error)
	Datasets(ctx context.Context) ([]domain.Dataset, error)
}

// Handler handles HTTP requests for map services.
type Handler struct {
	svc Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// WMS handles GET /wms/datasets/:dataset.
func (h *Handler) WMS(c *gin.Context) {
	resp, err := h.svc.Handle(c.Request.Context(), c.Param("dataset"), c.Request.URL.Query())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("X-Cache", cacheHeader(resp.Cached))
	c.Data(http.StatusOK, resp.ContentType, resp.Data)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

// CacheStatus handles GET /wms/datasets/:dataset/cache.
func (h *Handler) CacheStatus(c *gin.Context) {
	slug := c.Param("dataset")
	has, err := h.svc.HasCache(c.Request.Context(), slug)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataset": slug, "has_cache": has})
}

// ClearCache handles DELETE /wms/datasets/:dataset/cache.
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.svc.ClearCache(c.Request.Context(), c.Param("dataset")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Update handles POST /wms/datasets/:dataset/update.
func (h *Handler) Update(c *gin.Context) {
	slug := c.Param("dataset")
	layers, err := h.svc.Update(c.Request.Context(), slug)
	if err != nil {
		abortWithError(c, err)
		return
	}
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.VarName
	}
	c.JSON(http.StatusOK, gin.H{"dataset": slug, "layers": names})
}

// ListDatasets handles GET /v1/datasets.
func (h *Handler) ListDatasets(c *gin.Context) {
	datasets, err := h.svc.Datasets(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	type DatasetInfo struct {
		Slug     string `json:"slug"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Title    string `json:"title,omitempty"`
		Abstract string `json:"abstract,omitempty"`
	}

	response := make([]DatasetInfo, len(datasets))
	for i, ds := range datasets {
		response[i] = DatasetInfo{
			Slug:     ds.Slug,
			Name:     ds.Name,
			Type:     ds.Type.String(),
			Title:    ds.Title,
			Abstract: ds.Abstract,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"datasets": response,
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps core errors to HTTP statuses.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnresolvableLayer:
		return http.StatusNotFound
	case domain.KindUnsupportedDatasetType:
		return http.StatusUnprocessableEntity
	case domain.KindStaleCacheRebuild:
		return http.StatusInternalServerError
	case domain.KindRenderTimeout:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": "internal", "message": err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		body["error"] = string(de.Kind)
		if de.Field != "" {
			body["field"] = de.Field
		}
	} else if status == http.StatusNotFound {
		body["error"] = "not_found"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
