package backinstock

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"restockly/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the back-in-stock domain.
type Handler struct {
	intake  *Intake
	service *Service
}

// NewHandler creates a new back-in-stock handler.
func NewHandler(intake *Intake, service *Service) *Handler {
	return &Handler{intake: intake, service: service}
}

// Subscribe handles POST /storefront/subscribe, called from the product page
// widget.
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.intake.Subscribe(c.Request.Context(), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	common.Success(c, status, result)
}

// widgetSettingsResponse is the storefront-facing slice of shop settings.
type widgetSettingsResponse struct {
	Enabled        bool   `json:"enabled"`
	ButtonText     string `json:"button_text"`
	SuccessMessage string `json:"success_message"`
}

// WidgetSettings handles GET /storefront/settings, the widget bootstrap call.
func (h *Handler) WidgetSettings(c *gin.Context) {
	settings, err := h.service.WidgetSettings(c.Request.Context(), c.Query("shop"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, widgetSettingsResponse{
		Enabled:        settings.Enabled,
		ButtonText:     settings.ButtonText,
		SuccessMessage: settings.SuccessMessage,
	})
}

// inventoryWebhookPayload mirrors the platform's inventory level webhook body.
// Identifiers arrive as bare numbers; json.Number keeps them lossless.
type inventoryWebhookPayload struct {
	InventoryItemID json.Number `json:"inventory_item_id"`
	LocationID      json.Number `json:"location_id"`
	Available       int         `json:"available"`
	Shop            string      `json:"shop"`
}

// shopDomainHeader carries the originating shop on platform webhooks.
const shopDomainHeader = "X-Shopify-Shop-Domain"

// InventoryWebhook handles POST /webhooks/inventory. The transport has
// already been authenticated upstream; this endpoint validates, records and
// enqueues, then acknowledges. Dispatch happens on the worker.
func (h *Handler) InventoryWebhook(c *gin.Context) {
	var payload inventoryWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid webhook payload: "+err.Error())
		return
	}

	shop := c.GetHeader(shopDomainHeader)
	if shop == "" {
		shop = payload.Shop
	}

	event := &InventoryAvailabilityEvent{
		Shop:            shop,
		InventoryItemID: payload.InventoryItemID.String(),
		LocationID:      payload.LocationID.String(),
		Available:       payload.Available,
	}

	ev, err := h.service.AcceptEvent(c.Request.Context(), event)
	if err != nil {
		slog.Error("accepting inventory webhook failed",
			"shop", shop,
			"inventory_item_id", event.InventoryItemID,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, gin.H{
		"event_id": ev.ID,
		"status":   ev.Status,
	})
}

// ListSubscriptions handles GET /api/v1/subscriptions
func (h *Handler) ListSubscriptions(c *gin.Context) {
	var filter SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	page, err := h.service.ListSubscriptions(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, page)
}

// DeleteSubscription handles DELETE /api/v1/subscriptions/:id
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if err := h.service.DeleteSubscription(c.Request.Context(), c.Param("id")); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	var filter RecordFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	page, err := h.service.ListNotificationRecords(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, page)
}

// GetEvent handles GET /api/v1/events/:id
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, ev)
}

// RegisterStorefrontRoutes registers the public storefront routes.
func (h *Handler) RegisterStorefrontRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscribe", h.Subscribe)
	rg.GET("/settings", h.WidgetSettings)
}

// RegisterWebhookRoutes registers the inbound platform webhook routes.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/inventory", h.InventoryWebhook)
}

// RegisterAdminRoutes registers the API-key protected admin routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/subscriptions", h.ListSubscriptions)
	rg.DELETE("/subscriptions/:id", h.DeleteSubscription)
	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/events/:id", h.GetEvent)
}
