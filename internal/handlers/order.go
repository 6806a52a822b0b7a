package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"myshop-backend/internal/middleware"
	"myshop-backend/internal/models"
	"myshop-backend/internal/repository"
)

type OrderHandler struct {
	orderRepo *repository.OrderRepo
}

func NewOrderHandler(orderRepo *repository.OrderRepo) *OrderHandler {
	return &OrderHandler{orderRepo: orderRepo}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := make(map[string]string)
	if len(req.Products) == 0 {
		fields["products"] = "At least one product is required"
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		fields["phone_number"] = "Phone number is required"
	}
	if strings.TrimSpace(req.DeliveryMethod) == "" {
		fields["delivery_method"] = "Delivery method is required"
	}
	if strings.TrimSpace(req.Address) == "" {
		fields["address"] = "Address is required"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "All fields are required", fields, r))
		return
	}

	order := &models.Order{
		UserID:         middleware.GetUserID(r.Context()),
		UserEmail:      middleware.GetUserEmail(r.Context()),
		Products:       req.Products,
		PhoneNumber:    req.PhoneNumber,
		DeliveryMethod: req.DeliveryMethod,
		Address:        req.Address,
	}

	if err := h.orderRepo.Create(r.Context(), order); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create order", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"order": order})
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	orders, err := h.orderRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch orders", r))
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
