package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockLow           = "StockLow"
)

const eventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an already encoded payload.
func NewEnvelope(eventType, producer, traceID string, orderID int64, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       payload,
	}
}

func (e Envelope) Headers() []kafkago.Header {
	return []kafkago.Header{
		{Key: "x-event-type", Value: []byte(e.EventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(e.EventVersion))},
	}
}

type ItemQty struct {
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID      int64           `json:"order_id"`
	CustomerID   int64           `json:"customer_id"`
	Items        []ItemQty       `json:"items"`
	Total        decimal.Decimal `json:"total"`
	DeliveryType string          `json:"delivery_type,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	Status  Status `json:"status"`
}

type StockLowPayload struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	OrderID   int64  `json:"order_id"`
}
