package uisp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIContact is one contact record on a UISP client.
type APIContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// APICustomer is the UISP client payload.
type APICustomer struct {
	ID         int64        `json:"id"`
	FirstName  string       `json:"firstName"`
	LastName   string       `json:"lastName"`
	IsArchived bool         `json:"isArchived"`
	Street1    string       `json:"street1"`
	Street2    string       `json:"street2"`
	City       string       `json:"city"`
	State      string       `json:"state"`
	ZipCode    string       `json:"zipCode"`
	Contacts   []APIContact `json:"contacts"`
}

// Name joins the UISP first and last name.
func (c APICustomer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Address flattens the UISP address fields into one line.
func (c APICustomer) Address() string {
	if c.Street1 == "" {
		return ""
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{c.Street1, c.Street2, c.City, c.State, c.ZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// APIInvoice is the UISP invoice payload.
type APIInvoice struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"clientId"`
	Number      string    `json:"number"`
	Subtotal    float64   `json:"subtotal"`
	TaxAmount   float64   `json:"taxAmount"`
	Total       float64   `json:"total"`
	CreatedDate time.Time `json:"createdDate"`
	DueDate     time.Time `json:"dueDate"`
	Status      int       `json:"status"`
}

// APIPaymentMethod is the payment method object on a UISP payment.
type APIPaymentMethod struct {
	Name string `json:"name"`
}

// APIPayment is the UISP payment payload.
type APIPayment struct {
	ID            int64             `json:"id"`
	ClientID      int64             `json:"clientId"`
	InvoiceID     *int64            `json:"invoiceId"`
	Amount        float64           `json:"amount"`
	CreatedDate   time.Time         `json:"createdDate"`
	Method        *APIPaymentMethod `json:"method"`
	ReceiptNumber string            `json:"receiptNumber"`
}

// Client wraps read-only access to the UISP CRM API. UISP data is never
// modified from here.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client. baseURL is the UISP installation root;
// the API version prefix is appended per request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Customers fetches all UISP clients.
func (c *Client) Customers(ctx context.Context) ([]APICustomer, error) {
	var out []APICustomer
	if err := c.get(ctx, "/clients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invoices fetches invoices, optionally created on or after since.
func (c *Client) Invoices(ctx context.Context, since time.Time) ([]APIInvoice, error) {
	var out []APIInvoice
	if err := c.get(ctx, "/invoices", sinceParams(since), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Payments fetches payments, optionally created on or after since.
func (c *Client) Payments(ctx context.Context, since time.Time) ([]APIPayment, error) {
	var out []APIPayment
	if err := c.get(ctx, "/payments", sinceParams(since), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sinceParams(since time.Time) url.Values {
	if since.IsZero() {
		return nil
	}
	return url.Values{"createdDateFrom": {since.Format("2006-01-02")}}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.baseURL == "" || c.token == "" {
		return fmt.Errorf("uisp: credentials not configured")
	}
	target := c.baseURL + "/api/v1.0" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Auth-App-Key", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uisp: %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("uisp: %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("uisp: %s: decode: %w", endpoint, err)
	}
	return nil
}
