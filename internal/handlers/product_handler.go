package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop-backoffice/internal/apperrors"
	"shop-backoffice/internal/cache"
	"shop-backoffice/internal/models"
	"shop-backoffice/internal/repository"
	"shop-backoffice/internal/requests"
)

const (
	productKeyPrefix = "product:"
	listKeyPrefix    = "products:list:"
	maxPageSize      = 100
)

type ProductService interface {
	Create(ctx context.Context, payload requests.ProductPayload) (*models.Product, error)
	Update(ctx context.Context, id string, payload requests.ProductPayload) (*models.Product, error)
	Delete(ctx context.Context, id string, kind models.ProductType) (*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, f repository.ListFilter) ([]*models.Product, int64, error)
	SetQuantity(ctx context.Context, id string, quantity int) (*models.Product, error)
	SetVariationQuantity(ctx context.Context, id, sku string, quantity int) (*models.Product, error)
}

type ProductHandler struct {
	svc    ProductService
	cache  *cache.Cache
	logger *zap.Logger
}

func NewProductHandler(svc ProductService, c *cache.Cache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		svc:    svc,
		cache:  c,
		logger: logger,
	}
}

// CreateProduct handles POST /products/{simple|variable}.
func (h *ProductHandler) CreateProduct(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := requests.Decode(c, kind, requests.Create)
		if err != nil {
			h.respondError(c, err)
			return
		}
		product, err := h.svc.Create(c.Request.Context(), payload)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.cache.DeleteByPrefix(listKeyPrefix)
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProduct handles PUT /products/{simple|variable}/:id.
func (h *ProductHandler) UpdateProduct(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		payload, err := requests.Decode(c, kind, requests.Update)
		if err != nil {
			h.respondError(c, err)
			return
		}
		product, err := h.svc.Update(c.Request.Context(), id, payload)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.invalidate(id)
		c.JSON(http.StatusOK, product)
	}
}

// DeleteProduct handles DELETE /products/{simple|variable}/:id.
func (h *ProductHandler) DeleteProduct(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		product, err := h.svc.Delete(c.Request.Context(), id, kind)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.invalidate(id)
		c.JSON(http.StatusOK, product)
	}
}

func (h *ProductHandler) SetQuantity(c *gin.Context) {
	id := c.Param("id")
	quantity, err := requests.DecodeQuantity(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	product, err := h.svc.SetQuantity(c.Request.Context(), id, quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidate(id)
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) SetVariationQuantity(c *gin.Context) {
	id := c.Param("id")
	quantity, err := requests.DecodeQuantity(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	product, err := h.svc.SetVariationQuantity(c.Request.Context(), id, c.Param("sku"), quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidate(id)
	c.JSON(http.StatusOK, product)
}

// GetProduct returns a product by ID, served from cache when possible.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id := c.Param("id")
	cacheKey := productKeyPrefix + id

	if cached, found := h.cache.GetValue(cacheKey); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	product, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.cache.Set(cacheKey, product)
	c.JSON(http.StatusOK, product)
}

// ListProducts pages through products, newest first.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		h.respondError(c, apperrors.Validation("page must be a positive integer", "page"))
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		h.respondError(c, apperrors.Validation("page_size must be between 1 and 100", "page_size"))
		return
	}
	filter := repository.ListFilter{
		Page:     page,
		PageSize: pageSize,
		Type:     models.ProductType(c.Query("type")),
		Status:   models.Status(c.Query("status")),
	}

	cacheKey := listKeyPrefix + c.Request.URL.Query().Encode()
	if cached, found := h.cache.GetValue(cacheKey); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	products, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}
	response := gin.H{
		"data":        products,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	}
	h.cache.Set(cacheKey, response)
	c.JSON(http.StatusOK, response)
}

func (h *ProductHandler) invalidate(id string) {
	h.cache.Delete(productKeyPrefix + id)
	h.cache.DeleteByPrefix(listKeyPrefix)
}

// respondError maps err to its status and writes { "message": ... }.
func (h *ProductHandler) respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.Internal || kind == apperrors.BlobStoreFailure {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(kind.Status(), gin.H{"message": apperrors.PublicMessage(err)})
}
