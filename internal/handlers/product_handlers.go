package handlers

import (
	"net/http"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ProductHandler holds the menu service.
type ProductHandler struct {
	productService services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(ps services.ProductService) *ProductHandler {
	return &ProductHandler{productService: ps}
}

// GetProducts lists the menu, optionally filtered by category and availability.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var filters models.ProductFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid query parameters.", err.Error()))
		return
	}

	products, err := h.productService.ListProducts(c.Request.Context(), sess, filters)
	if err != nil {
		respondServiceError(c, "GetProducts: Error from productService.ListProducts", err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

// GetProductByID handles fetching a single menu entry.
func (h *ProductHandler) GetProductByID(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	product, err := h.productService.GetProduct(c.Request.Context(), sess, productID)
	if err != nil {
		respondServiceError(c, "GetProductByID: Error from productService.GetProduct for ID "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateProduct adds a menu entry.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req services.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateProduct: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), sess, req)
	if err != nil {
		respondServiceError(c, "CreateProduct: Error from productService.CreateProduct", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct replaces a menu entry.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateProduct: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), sess, productID, req)
	if err != nil {
		respondServiceError(c, "UpdateProduct: Error from productService.UpdateProduct for ID "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a menu entry. Existing order lines keep their snapshot.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.productService.DeleteProduct(c.Request.Context(), sess, productID); err != nil {
		respondServiceError(c, "DeleteProduct: Error from productService.DeleteProduct for ID "+c.Param("id"), err)
		return
	}
	c.Status(http.StatusNoContent)
}
