package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListProjects handles GET /projects.
func (a *API) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.content.ListProjects()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject handles GET /projects/{slug}.
func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := a.content.GetProjectBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// ListProducts handles GET /products.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.content.ListProducts()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// CreateOrder handles the public POST /orders: the product-ordering flow.
func (a *API) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateOrderRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	order, err := a.content.CreateOrder(req.ProductID, req.Email)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetSettings handles GET /settings, returning the public site settings.
// Reserved keys are filtered before this point.
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.content.GetSettings()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
