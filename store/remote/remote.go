/*
Package remote provides the HTTP-backed Backend variant.

PURPOSE:
  Implements billing.Backend against the fixed JSON wire contract (one
  resource collection per entity kind under /api). Every operation is a
  single blocking request/response; create, update and remove return only
  after the remote store has acknowledged the write.

ERROR MAPPING:
  404                -> billing.ErrNotFound (expected, recoverable)
  400                -> billing.ErrValidation
  other non-2xx      -> billing.ErrUnavailable (store fault)
  transport failure  -> billing.ErrUnavailable

  There is no automatic retry. A failure is surfaced once and the caller
  decides whether to try again.

INTERFACES IMPLEMENTED:
  billing.Backend:  Entity CRUD per kind
  billing.Reporter: /api/reports/* served by the far end

SEE ALSO:
  - api: The server side of this wire contract
  - billing/backend.go: Contract definition
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spacelefarm/billing-engine/billing"
)

// Client is the remote backend variant.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API at baseURL (e.g. "https://bills.example.com").
func New(baseURL string) *Client {
	return NewWithClient(baseURL, &http.Client{Timeout: 15 * time.Second})
}

// NewWithClient creates a client with a caller-supplied http.Client
// (tests inject httptest clients here).
func NewWithClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// =============================================================================
// WIRE PLUMBING
// =============================================================================

// errorBody is the error envelope the API returns for non-2xx responses.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// do performs one JSON request. out may be nil when the response body is
// irrelevant (deletes, updates).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, billing.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		json.NewDecoder(resp.Body).Decode(&eb)

		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %w", method, path, billing.ErrNotFound)
		case http.StatusBadRequest:
			if eb.Details != "" {
				return fmt.Errorf("%s %s: %s: %w", method, path, eb.Details, billing.ErrValidation)
			}
			return fmt.Errorf("%s %s: %w", method, path, billing.ErrValidation)
		default:
			return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, billing.ErrUnavailable)
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// delete issues a DELETE and keeps the contract's idempotence: a 404 from
// the far end means the record is already gone, which is success.
func (c *Client) delete(ctx context.Context, path string) error {
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && billing.IsNotFound(err) {
		return nil
	}
	return err
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (c *Client) ListProducts(ctx context.Context) ([]billing.Product, error) {
	var products []billing.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (billing.Product, error) {
	var p billing.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p); err != nil {
		if billing.IsNotFound(err) {
			return billing.Product{}, &billing.NotFoundError{Kind: "product", ID: id}
		}
		return billing.Product{}, err
	}
	return p, nil
}

func (c *Client) CreateProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	var created billing.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", p, &created); err != nil {
		return billing.Product{}, err
	}
	return created, nil
}

func (c *Client) UpdateProduct(ctx context.Context, p billing.Product) error {
	return c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(p.ID), p, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/products/"+url.PathEscape(id))
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (c *Client) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	var customers []billing.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (billing.Customer, error) {
	var cu billing.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers/"+url.PathEscape(id), nil, &cu); err != nil {
		if billing.IsNotFound(err) {
			return billing.Customer{}, &billing.NotFoundError{Kind: "customer", ID: id}
		}
		return billing.Customer{}, err
	}
	return cu, nil
}

func (c *Client) CreateCustomer(ctx context.Context, cu billing.Customer) (billing.Customer, error) {
	var created billing.Customer
	if err := c.do(ctx, http.MethodPost, "/api/customers", cu, &created); err != nil {
		return billing.Customer{}, err
	}
	return created, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, cu billing.Customer) error {
	return c.do(ctx, http.MethodPut, "/api/customers/"+url.PathEscape(cu.ID), cu, nil)
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/customers/"+url.PathEscape(id))
}

// =============================================================================
// UNITS
// =============================================================================

func (c *Client) ListUnits(ctx context.Context) ([]billing.Unit, error) {
	var units []billing.Unit
	if err := c.do(ctx, http.MethodGet, "/api/units", nil, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func (c *Client) GetUnit(ctx context.Context, id string) (billing.Unit, error) {
	var u billing.Unit
	if err := c.do(ctx, http.MethodGet, "/api/units/"+url.PathEscape(id), nil, &u); err != nil {
		if billing.IsNotFound(err) {
			return billing.Unit{}, &billing.NotFoundError{Kind: "unit", ID: id}
		}
		return billing.Unit{}, err
	}
	return u, nil
}

func (c *Client) CreateUnit(ctx context.Context, u billing.Unit) (billing.Unit, error) {
	var created billing.Unit
	if err := c.do(ctx, http.MethodPost, "/api/units", u, &created); err != nil {
		return billing.Unit{}, err
	}
	return created, nil
}

func (c *Client) UpdateUnit(ctx context.Context, u billing.Unit) error {
	return c.do(ctx, http.MethodPut, "/api/units/"+url.PathEscape(u.ID), u, nil)
}

func (c *Client) DeleteUnit(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/units/"+url.PathEscape(id))
}

// =============================================================================
// SETTINGS
// =============================================================================

func (c *Client) GetSettings(ctx context.Context) (billing.Settings, error) {
	var s billing.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s); err != nil {
		if billing.IsNotFound(err) {
			return billing.Settings{}, &billing.NotFoundError{Kind: "settings", ID: billing.SettingsID}
		}
		return billing.Settings{}, err
	}
	return s, nil
}

func (c *Client) SaveSettings(ctx context.Context, s billing.Settings) error {
	s.ID = billing.SettingsID
	return c.do(ctx, http.MethodPut, "/api/settings", s, nil)
}

// =============================================================================
// BILLS
// =============================================================================

func (c *Client) ListBills(ctx context.Context, f billing.BillFilter) ([]billing.Bill, error) {
	params := url.Values{}
	if f.Start != nil {
		params.Set("startDate", f.Start.Format(billing.DateLayout))
	}
	if f.End != nil {
		params.Set("endDate", f.End.Format(billing.DateLayout))
	}
	path := "/api/bills"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var bills []billing.Bill
	if err := c.do(ctx, http.MethodGet, path, nil, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (c *Client) GetBill(ctx context.Context, id string) (billing.Bill, error) {
	var b billing.Bill
	if err := c.do(ctx, http.MethodGet, "/api/bills/"+url.PathEscape(id), nil, &b); err != nil {
		if billing.IsNotFound(err) {
			return billing.Bill{}, &billing.NotFoundError{Kind: "bill", ID: id}
		}
		return billing.Bill{}, err
	}
	return b, nil
}

func (c *Client) CreateBill(ctx context.Context, b billing.Bill) (billing.Bill, error) {
	var created billing.Bill
	if err := c.do(ctx, http.MethodPost, "/api/bills", b, &created); err != nil {
		return billing.Bill{}, err
	}
	return created, nil
}

func (c *Client) DeleteBill(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/bills/"+url.PathEscape(id))
}

// =============================================================================
// REPORTS (billing.Reporter)
// =============================================================================

func (c *Client) ReportSummary(ctx context.Context) (billing.Summary, error) {
	var s billing.Summary
	if err := c.do(ctx, http.MethodGet, "/api/reports/summary", nil, &s); err != nil {
		return billing.Summary{}, err
	}
	return s, nil
}

func (c *Client) ReportDaily(ctx context.Context, days int) ([]billing.DailyPoint, error) {
	var points []billing.DailyPoint
	path := fmt.Sprintf("/api/reports/daily?days=%d", days)
	if err := c.do(ctx, http.MethodGet, path, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}
