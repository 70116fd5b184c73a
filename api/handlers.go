/*
handlers.go - HTTP handlers for the billing wire contract

PURPOSE:
  Serves the fixed JSON API that store/remote consumes: one resource
  collection per entity kind plus the report endpoints. Handlers decode,
  validate, delegate to the configured billing.Backend, and map the error
  taxonomy onto status codes.

ENDPOINTS:
  GET/POST   /api/products            List / create products
  GET        /api/products/{id}       Get product
  PUT/DELETE /api/products/{id}       Full-replace update / idempotent delete
  (same shape for /api/customers and /api/units)
  GET/PUT    /api/settings            Singleton settings
  GET/POST   /api/bills               List (startDate/endDate range) / create
  GET/DELETE /api/bills/{id}          Get / delete (bills have no update)
  GET        /api/reports/summary     Today / ISO week / month / all-time
  GET        /api/reports/daily       Trailing daily totals (?days=N)

ERROR HANDLING:
  - 400: validation failure (blank required field, bad payload, id mismatch)
  - 404: target id does not exist
  - 500: backend fault

  An update whose body carries an id different from the path id is
  rejected rather than silently renamed.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/spacelefarm/billing-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the configured backend and the request validator.
type Handler struct {
	Backend  billing.Backend
	validate *validator.Validate
}

// NewHandler creates a handler serving the given backend.
func NewHandler(b billing.Backend) *Handler {
	return &Handler{
		Backend:  b,
		validate: validator.New(),
	}
}

// decodeValid decodes the request body into v and runs struct validation.
func (h *Handler) decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &billing.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	if err := h.validate.Struct(v); err != nil {
		return &billing.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Backend.ListProducts(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if products == nil {
		products = []billing.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Backend.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeBackendError(w, err)
		return
	}

	created, err := h.Backend.CreateProduct(r.Context(), req.toEntity())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p billing.Product
	if err := h.decodeValid(r, &p); err != nil {
		writeBackendError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if p.ID != "" && p.ID != id {
		writeBackendError(w, &billing.ValidationError{Field: "id", Reason: "does not match URL"})
		return
	}
	p.ID = id

	if err := h.Backend.UpdateProduct(r.Context(), p); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Backend.ListCustomers(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if customers == nil {
		customers = []billing.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Backend.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeBackendError(w, err)
		return
	}

	created, err := h.Backend.CreateCustomer(r.Context(), req.toEntity())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var c billing.Customer
	if err := h.decodeValid(r, &c); err != nil {
		writeBackendError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if c.ID != "" && c.ID != id {
		writeBackendError(w, &billing.ValidationError{Field: "id", Reason: "does not match URL"})
		return
	}
	c.ID = id

	if err := h.Backend.UpdateCustomer(r.Context(), c); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Backend.ListUnits(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if units == nil {
		units = []billing.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	u, err := h.Backend.GetUnit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeBackendError(w, err)
		return
	}

	created, err := h.Backend.CreateUnit(r.Context(), billing.Unit{Name: req.Name})
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	var u billing.Unit
	if err := h.decodeValid(r, &u); err != nil {
		writeBackendError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if u.ID != "" && u.ID != id {
		writeBackendError(w, &billing.ValidationError{Field: "id", Reason: "does not match URL"})
		return
	}
	u.ID = id

	if err := h.Backend.UpdateUnit(r.Context(), u); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.DeleteUnit(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Backend.GetSettings(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var s billing.Settings
	if err := h.decodeValid(r, &s); err != nil {
		writeBackendError(w, err)
		return
	}

	if err := h.Backend.SaveSettings(r.Context(), s); err != nil {
		writeBackendError(w, err)
		return
	}
	s.ID = billing.SettingsID
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	var f billing.BillFilter
	if v := r.URL.Query().Get("startDate"); v != "" {
		t, err := time.ParseInLocation(billing.DateLayout, v, time.Local)
		if err != nil {
			writeBackendError(w, &billing.ValidationError{Field: "startDate", Reason: "must be YYYY-MM-DD"})
			return
		}
		f.Start = &t
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		t, err := time.ParseInLocation(billing.DateLayout, v, time.Local)
		if err != nil {
			writeBackendError(w, &billing.ValidationError{Field: "endDate", Reason: "must be YYYY-MM-DD"})
			return
		}
		f.End = &t
	}

	bills, err := h.Backend.ListBills(r.Context(), f)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if bills == nil {
		bills = []billing.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	b, err := h.Backend.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeBackendError(w, err)
		return
	}

	created, err := h.Backend.CreateBill(r.Context(), req.toEntity())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.DeleteBill(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) ReportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reportSummary(r)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) reportSummary(r *http.Request) (billing.Summary, error) {
	if rep, ok := h.Backend.(billing.Reporter); ok {
		return rep.ReportSummary(r.Context())
	}
	bills, err := h.Backend.ListBills(r.Context(), billing.BillFilter{})
	if err != nil {
		return billing.Summary{}, err
	}
	return billing.Summarize(bills, time.Now()), nil
}

func (h *Handler) ReportDaily(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBackendError(w, &billing.ValidationError{Field: "days", Reason: "must be a positive integer"})
			return
		}
		days = n
	}

	points, err := h.reportDaily(r, days)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) reportDaily(r *http.Request, days int) ([]billing.DailyPoint, error) {
	if rep, ok := h.Backend.(billing.Reporter); ok {
		return rep.ReportDaily(r.Context(), days)
	}
	bills, err := h.Backend.ListBills(r.Context(), billing.BillFilter{})
	if err != nil {
		return nil, err
	}
	return billing.DailyTotals(bills, time.Now(), days), nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeBackendError maps the billing error taxonomy onto HTTP status codes.
func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Store fault", err)
	}
}
