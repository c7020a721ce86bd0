package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

// NotificationHandler reacts to order lifecycle events: it sends the customer
// email and, for freshly placed orders, confirms the order through the
// storefront API. Stock was already committed atomically at checkout, so
// nothing here touches inventory.
type NotificationHandler struct {
	emailServiceURL string
	storefrontURL   string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, storefrontURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		storefrontURL:   storefrontURL,
		httpClient:      client,
		logger:          logger,
	}
}

// HandleOrderPlaced consumes an order.placed payload.
func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_number", event.OrderNumber, "user_id", event.UserID)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_number", event.OrderNumber)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.confirmOrder(ctx, event.OrderNumber); err != nil {
		h.logger.Error("failed to confirm order", "error", err, "order_number", event.OrderNumber)
		return fmt.Errorf("confirm order: %w", err)
	}

	h.logger.Info("order confirmed", "order_number", event.OrderNumber)
	return nil
}

// HandleOrderCancelled consumes an order.cancelled payload.
func (h *NotificationHandler) HandleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	h.logger.Info("processing order cancelled event", "order_number", event.OrderNumber, "user_id", event.UserID)

	if err := h.sendCancellationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send cancellation email", "error", err, "order_number", event.OrderNumber)
		return fmt.Errorf("send cancellation email: %w", err)
	}

	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	units := 0
	for _, item := range event.Items {
		units += item.Quantity
	}

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Confirmation: " + event.OrderNumber,
		"body": fmt.Sprintf("Thanks for your order! %s covers %d item(s) for a total of $%d.%02d.",
			event.OrderNumber, units, event.Total/100, event.Total%100),
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendCancellationEmail(ctx context.Context, event domain.OrderCancelledEvent) error {
	text := fmt.Sprintf("Your order %s has been cancelled.", event.OrderNumber)
	if event.Reason != "" {
		text += " Reason: " + event.Reason
	}

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Cancelled: " + event.OrderNumber,
		"body":    text,
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) confirmOrder(ctx context.Context, orderNumber string) error {
	data, err := json.Marshal(map[string]string{
		"status": string(domain.OrderStatusConfirmed),
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/orders/%s/status", h.storefrontURL, orderNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// The status endpoint is admin-only; the worker acts as a service
	// principal.
	req.Header.Set(identity.UserHeader, "worker")
	req.Header.Set(identity.RoleHeader, identity.RoleAdmin)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront returned status %d", resp.StatusCode)
	}

	return nil
}
