package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type checkoutRequest struct {
	Items           []domain.CartItem     `json:"items"`
	ShippingAddress domain.Address        `json:"shipping_address"`
	BillingAddress  domain.Address        `json:"billing_address"`
	ShippingMethod  domain.ShippingMethod `json:"shipping_method"`
	CouponCode      string                `json:"coupon_code"`
	Notes           string                `json:"notes"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Checkout(r.Context(), id.UserID, CheckoutInput{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingMethod:  req.ShippingMethod,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "checkout failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())

	orders, err := h.service.ListOrders(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderNumber, id.UserID, id.IsAdmin())
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	order, err := h.service.Cancel(r.Context(), orderNumber, id.UserID, id.IsAdmin(), req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to cancel order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	order, err := h.service.Return(r.Context(), orderNumber, id.UserID, id.IsAdmin())
	if err != nil {
		h.writeDomainError(w, r, err, "failed to return order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status         domain.OrderStatus `json:"status"`
	Message        string             `json:"message"`
	Location       string             `json:"location"`
	TrackingNumber string             `json:"tracking_number"`
	Carrier        string             `json:"carrier"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := req.Message
	if req.TrackingNumber != "" {
		if message != "" {
			message += " "
		}
		message += "Tracking " + req.TrackingNumber
		if req.Carrier != "" {
			message += " via " + req.Carrier
		}
	}

	order, err := h.service.UpdateStatus(r.Context(), orderNumber, req.Status, message, req.Location)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to update order status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Refund(r.Context(), orderNumber, req.TransactionID, req.Amount, req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to process refund")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// writeDomainError maps the error taxonomy onto status codes. Validation and
// business-rule violations carry a structured reason; storage failures stay
// generic.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	var validationErr *domain.ValidationError
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &stockErr):
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRefundExceedsTotal):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPaymentDeclined):
		h.writeError(w, http.StatusPaymentRequired, "payment declined")
	default:
		h.logger.Error(logMessage, "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
