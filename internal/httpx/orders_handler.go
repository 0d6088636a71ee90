package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// OrderService is satisfied by *orders.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, sub orders.Submission) (orders.Placement, error)
	ChangeStatus(ctx context.Context, id int64, raw string) (orders.Status, error)
}

// OrderReader is satisfied by *orders.Repo.
type OrderReader interface {
	List(ctx context.Context) ([]orders.OrderSummary, error)
	Get(ctx context.Context, id int64) (orders.OrderDetail, error)
}

// Idempotency is satisfied by *redisx.Idempotency.
type Idempotency interface {
	Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Service OrderService
	Reads   OrderReader
	Idem    Idempotency // nil ignores Idempotency-Key
}

const orderNotFound = "Pedido no encontrado"

type placeResp struct {
	Success    bool   `json:"success"`
	OrderID    int64  `json:"pedidoId"`
	Message    string `json:"message"`
	Idempotent bool   `json:"idempotent,omitempty"`
}

type statusReq struct {
	Status string `json:"estado"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/pedidos", h.placeOrder)
	r.Get("/pedidos", h.listOrders)
	r.Get("/pedidos/{id}", h.getOrder)
	r.Put("/pedidos/{id}/estado", h.updateStatus)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var sub orders.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	ctx := r.Context()
	log := logging.FromContext(ctx, nil)

	// Redis is a shortcut only; when it fails the order is placed normally.
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	claimed := false
	if key != "" && h.Idem != nil {
		id, ok, err := h.Idem.Claim(ctx, key)
		switch {
		case err != nil:
			log.WarnContext(ctx, "idempotency claim failed", "err", err)
		case ok:
			claimed = true
		case id != 0:
			writeJSON(w, http.StatusOK, placeResp{Success: true, OrderID: id, Message: "Pedido ya registrado", Idempotent: true})
			return
		default:
			writeJSON(w, http.StatusConflict, errorResp{Error: "el pedido ya se está procesando"})
			return
		}
	}

	p, err := h.Service.PlaceOrder(ctx, sub)
	if err != nil {
		if claimed {
			if err := h.Idem.Release(context.WithoutCancel(ctx), key); err != nil {
				log.WarnContext(ctx, "idempotency release failed", "err", err)
			}
		}
		writeError(w, r, err, orderNotFound)
		return
	}

	if claimed {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), key, p.OrderID); err != nil {
			log.WarnContext(ctx, "idempotency complete failed", "order_id", p.OrderID, "err", err)
		}
	}
	writeJSON(w, http.StatusCreated, placeResp{Success: true, OrderID: p.OrderID, Message: "Pedido creado exitosamente"})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reads.List(r.Context())
	if err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	d, err := h.Reads.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	if _, err := h.Service.ChangeStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, okResp{Success: true, Message: "Estado actualizado"})
}
