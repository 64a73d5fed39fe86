package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/database"
	"github.com/otelcore/booking-backend/internal/middleware"
	"github.com/otelcore/booking-backend/internal/models"
)

const dateLayout = "2006-01-02"

// CatalogHandler handles catalog item HTTP requests, public and operator-side
type CatalogHandler struct {
	items  *database.CatalogItemRepository
	ledger *database.CapacityLedgerRepository
	logger *logrus.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(items *database.CatalogItemRepository, ledger *database.CapacityLedgerRepository, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		items:  items,
		ledger: ledger,
		logger: logger,
	}
}

// GetPublicItem returns one active item for the public booking page.
// Cross-tenant or inactive items answer 404; the route never reveals whether
// an id exists in another organization.
// @Summary Get public catalog item
// @Tags Public
// @Produce json
// @Param id path string true "Catalog item ID"
// @Param org query string true "Organization ID"
// @Success 200 {object} models.CatalogItem
// @Failure 404 {object} ErrorResponse
// @Router /public/items/{id} [get]
func (h *CatalogHandler) GetPublicItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
		return
	}
	orgID, err := uuid.Parse(c.Query("org"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
		return
	}

	item, err := h.items.GetByID(orgID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !item.Active {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// CreateItem creates a catalog item for the operator's organization
// @Summary Create catalog item
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateCatalogItemRequest true "Item definition"
// @Success 201 {object} models.CatalogItem
// @Failure 400 {object} ErrorResponse
// @Router /catalog/items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	var req models.CreateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	capacityMode := models.CapacityMode(req.CapacityMode)
	if capacityMode == "" {
		capacityMode = models.CapacityUnlimited
	}

	item := &models.CatalogItem{
		ID:             uuid.New(),
		OrganizationID: opCtx.OrganizationID,
		Title:          req.Title,
		ItemType:       req.ItemType,
		Currency:       req.Currency,
		BasePrice:      req.BasePrice,
		MinPax:         req.MinPax,
		MaxPax:         req.MaxPax,
		MinNights:      req.MinNights,
		CapacityMode:   capacityMode,
		MaxPerDay:      req.MaxPerDay,
		Active:         true,
	}

	if err := h.items.Create(item); err != nil {
		h.logger.WithError(err).Error("Failed to create catalog item")
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"org_id":  opCtx.OrganizationID,
	}).Info("Catalog item created")

	c.JSON(http.StatusCreated, item)
}

// ListItems lists the operator's catalog
// @Summary List catalog items
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CatalogItem
// @Router /catalog/items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	activeOnly := c.Query("active") == "true"
	items, err := h.items.ListByOrganization(opCtx.OrganizationID, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GetItem returns one item in the operator's organization
// @Summary Get catalog item
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Catalog item ID"
// @Success 200 {object} models.CatalogItem
// @Failure 404 {object} ErrorResponse
// @Router /catalog/items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	item, err := h.items.GetByID(opCtx.OrganizationID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// UpdateItem applies a partial update. Existing booking requests keep their
// snapshotted price regardless of what changes here.
// @Summary Update catalog item
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Catalog item ID"
// @Param request body models.UpdateCatalogItemRequest true "Fields to update"
// @Success 200 {object} models.CatalogItem
// @Failure 404 {object} ErrorResponse
// @Router /catalog/items/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req models.UpdateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.items.Update(opCtx.OrganizationID, itemID, &req); err != nil {
		respondError(c, err)
		return
	}

	item, err := h.items.GetByID(opCtx.OrganizationID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeactivateItem takes an item off sale. Existing requests are unaffected.
// @Summary Deactivate catalog item
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Catalog item ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /catalog/items/{id} [delete]
func (h *CatalogHandler) DeactivateItem(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	if err := h.items.Deactivate(opCtx.OrganizationID, itemID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Item deactivated"})
}

// GetCapacity returns per-day utilization for an item over a date range
// @Summary Get capacity utilization
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Catalog item ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} models.CapacityListResponse
// @Failure 400 {object} ErrorResponse
// @Router /catalog/items/{id}/capacity [get]
func (h *CatalogHandler) GetCapacity(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date, expected YYYY-MM-DD"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not precede from"})
		return
	}

	// Tenancy check before touching the ledger
	item, err := h.items.GetByID(opCtx.OrganizationID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.ledger.ListRange(itemID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	consumedByDate := make(map[string]int, len(entries))
	for _, e := range entries {
		consumedByDate[e.Date.Format(dateLayout)] = e.ConsumedPax
	}

	days := make([]models.CapacityDay, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		days = append(days, models.CapacityDay{
			Date:        key,
			ConsumedPax: consumedByDate[key],
			MaxPerDay:   item.MaxPerDay,
		})
	}

	c.JSON(http.StatusOK, models.CapacityListResponse{
		CatalogItemID: itemID,
		From:          from.Format(dateLayout),
		To:            to.Format(dateLayout),
		Days:          days,
	})
}
