package domain

import "time"

type OrderPlacedEvent struct {
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	Total       int64       `json:"total"`
	Timestamp   time.Time   `json:"timestamp"`
}

type OrderCancelledEvent struct {
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}
