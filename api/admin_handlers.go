package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nkomarek/atelier/auth"
	"github.com/nkomarek/atelier/content"
)

// HandleAdmin handles POST /admin. Every action passes the session gate
// before its data payload is even decoded: no administrative side effect
// may occur without a freshly revalidated, non-expired session. A valid
// call slides the session expiry forward.
func (a *API) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AdminRequest](w, r, maxBodySize)
	if !ok {
		return
	}

	if err := a.auth.Authorize(req.SessionToken); err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			a.audit.logFailure(AuditSessionRejected, r, "admin action without valid session")
			writeSessionExpired(w)
			return
		}
		a.mapError(w, err)
		return
	}

	switch req.Action {
	case "project_create":
		a.adminProjectCreate(w, r, req.Data)
	case "project_update":
		a.adminProjectUpdate(w, r, req.Data)
	case "project_delete":
		a.adminDelete(w, r, req.Data, AuditProjectMutation, a.content.DeleteProject)
	case "product_create":
		a.adminProductCreate(w, r, req.Data)
	case "product_update":
		a.adminProductUpdate(w, r, req.Data)
	case "product_delete":
		a.adminDelete(w, r, req.Data, AuditProductMutation, a.content.DeleteProduct)
	case "order_list":
		a.adminOrderList(w, r)
	case "order_update_status":
		a.adminOrderUpdateStatus(w, r, req.Data)
	case "order_delete":
		a.adminDelete(w, r, req.Data, AuditOrderMutation, a.content.DeleteOrder)
	case "settings_set":
		a.adminSettingsSet(w, r, req.Data)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func decodeData[T any](w http.ResponseWriter, data json.RawMessage) (T, bool) {
	var v T
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "missing data payload")
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed data payload")
		return v, false
	}
	return v, true
}

func (a *API) adminProjectCreate(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	p, ok := decodeData[content.Project](w, data)
	if !ok {
		return
	}
	created, err := a.content.CreateProject(p)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditProjectMutation, r)
	writeJSON(w, http.StatusOK, created)
}

func (a *API) adminProjectUpdate(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	p, ok := decodeData[content.Project](w, data)
	if !ok {
		return
	}
	if p.ID == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}
	updated, err := a.content.UpdateProject(p.ID, p)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditProjectMutation, r)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) adminProductCreate(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	p, ok := decodeData[content.Product](w, data)
	if !ok {
		return
	}
	created, err := a.content.CreateProduct(p)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditProductMutation, r)
	writeJSON(w, http.StatusOK, created)
}

func (a *API) adminProductUpdate(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	p, ok := decodeData[content.Product](w, data)
	if !ok {
		return
	}
	if p.ID == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	updated, err := a.content.UpdateProduct(p.ID, p)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditProductMutation, r)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) adminDelete(w http.ResponseWriter, r *http.Request, data json.RawMessage, event AuditEvent, del func(string) error) {
	d, ok := decodeData[DeleteData](w, data)
	if !ok {
		return
	}
	if d.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := del(d.ID); err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(event, r)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *API) adminOrderList(w http.ResponseWriter, r *http.Request) {
	orders, err := a.content.ListOrders()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (a *API) adminOrderUpdateStatus(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	d, ok := decodeData[OrderStatusData](w, data)
	if !ok {
		return
	}
	if d.ID == "" || d.Status == "" {
		writeError(w, http.StatusBadRequest, "order id and status are required")
		return
	}
	order, err := a.content.UpdateOrderStatus(d.ID, content.OrderStatus(d.Status))
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditOrderMutation, r)
	writeJSON(w, http.StatusOK, order)
}

func (a *API) adminSettingsSet(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	d, ok := decodeData[SettingData](w, data)
	if !ok {
		return
	}
	if err := a.content.SetSetting(d.Key, d.Value); err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditSettingsMutation, r)
	writeJSON(w, http.StatusOK, struct{}{})
}
