package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// CatalogStore is satisfied by *catalog.Repo.
type CatalogStore interface {
	ListActive(ctx context.Context) ([]catalog.Product, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error)
	GetByID(ctx context.Context, id int64) (catalog.Product, error)
	Create(ctx context.Context, in catalog.ProductInput) (int64, error)
	Update(ctx context.Context, id int64, in catalog.ProductInput) error
	Deactivate(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]catalog.Category, error)
}

type CatalogHandler struct {
	Repo CatalogStore
}

const productNotFound = "Producto no encontrado"

type createdResp struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/productos", h.listProducts)
	r.Get("/productos/{id}", h.getProduct)
	r.Get("/productos/categoria/{id}", h.listByCategory)
	r.Post("/productos", h.createProduct)
	r.Put("/productos/{id}", h.updateProduct)
	r.Delete("/productos/{id}", h.deleteProduct)
	r.Get("/categorias", h.listCategories)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	p, err := h.Repo.GetByID(r.Context(), id)
	if err == nil && !p.Active {
		err = postgres.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	ps, err := h.Repo.ListByCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	id, err := h.Repo.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, createdResp{Success: true, ID: id, Message: "Producto creado exitosamente"})
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	if err := h.Repo.Update(r.Context(), id, in); err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, okResp{Success: true, Message: "Producto actualizado"})
}

// deleteProduct is a soft delete.
func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	if err := h.Repo.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, okResp{Success: true, Message: "Producto eliminado"})
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Repo.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err, "Categoría no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
