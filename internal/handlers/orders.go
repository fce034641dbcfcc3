package handlers

import (
	"errors"

	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OrderHandler serves the lab/imaging worklist and order fulfillment updates.
type OrderHandler struct {
	DB *gorm.DB
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{DB: db}
}

// orderTransitions holds the allowed fulfillment moves. Reported and
// cancelled are terminal.
var orderTransitions = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderPending:   {models.OrderReceived: true, models.OrderCancelled: true},
	models.OrderReceived:  {models.OrderInProcess: true, models.OrderCancelled: true},
	models.OrderInProcess: {models.OrderReported: true, models.OrderCancelled: true},
}

// CanTransitionOrder reports whether an order may move between two statuses.
func CanTransitionOrder(from, to models.OrderStatus) bool {
	return orderTransitions[from][to]
}

// ListWorklist returns medical orders for lab staff, optionally filtered by
// status, oldest first.
func (h *OrderHandler) ListWorklist(c *gin.Context) {
	query := h.DB.Order("created_at asc")

	if status := c.Query("status"); status != "" {
		switch models.OrderStatus(status) {
		case models.OrderPending, models.OrderReceived, models.OrderInProcess,
			models.OrderReported, models.OrderCancelled:
			query = query.Where("status = ?", status)
		default:
			utils.BadRequest(c, "Invalid order status: "+status)
			return
		}
	}

	var orders []models.MedicalOrder
	if err := query.Find(&orders).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch orders: "+err.Error())
		return
	}

	utils.Success(c, "Orders fetched successfully", orders)
}

// UpdateOrderStatusRequest represents the request body for advancing an order.
type UpdateOrderStatusRequest struct {
	Status  models.OrderStatus `json:"status" binding:"required,oneof=received in_process reported cancelled"`
	Results string             `json:"results"`
}

// UpdateOrderStatus advances a medical order along its fulfillment lifecycle
// and optionally attaches results text. Illegal transitions are rejected
// without touching the row.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var req UpdateOrderStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var order models.MedicalOrder
	if err := h.DB.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical order not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !CanTransitionOrder(order.Status, req.Status) {
		utils.Conflict(c, "Order cannot move from "+string(order.Status)+" to "+string(req.Status))
		return
	}

	order.Status = req.Status
	if req.Results != "" {
		order.Results = req.Results
	}

	if err := h.DB.Save(&order).Error; err != nil {
		utils.InternalServerError(c, "Failed to update order: "+err.Error())
		return
	}

	utils.Success(c, "Order updated successfully", order)
}
