package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest carries a message that is safe to show the client.
type badRequest string

func (e badRequest) Error() string { return string(e) }

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("JSON inválido")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("id inválido")
	}
	return id, nil
}

// writeError maps err onto a status code and a stable message. The full
// error is only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	code, msg := classify(err, notFound)
	log := logging.FromContext(r.Context(), nil)
	if code >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "status", code, "err", err)
	} else {
		log.InfoContext(r.Context(), "request rejected", "status", code, "err", err)
	}
	writeJSON(w, code, errorResp{Error: msg})
}

func classify(err error, notFound string) (int, string) {
	var (
		br  badRequest
		ve  *orders.ValidationError
		se  *orders.StockError
		pe  *orders.OrderPlacementError
		ce  *postgres.ConnectivityError
		ste *postgres.StatementError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, string(br)
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, orders.ErrInvalidStatus):
		return http.StatusBadRequest, "estado inválido"
	case errors.As(err, &se):
		return http.StatusConflict, fmt.Sprintf("stock insuficiente para el producto %d", se.ProductID)
	case errors.Is(err, orders.ErrProductNotFound):
		if errors.As(err, &pe) && pe.ProductID != 0 {
			return http.StatusConflict, fmt.Sprintf("producto %d no encontrado", pe.ProductID)
		}
		return http.StatusConflict, "producto no encontrado"
	case errors.Is(err, postgres.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable, "servicio no disponible"
	case errors.As(err, &ste) && strings.HasPrefix(ste.Code, "23"):
		return http.StatusBadRequest, "los datos violan una restricción"
	}
	return http.StatusInternalServerError, "error interno"
}
