// Package client is the Go client for the deudat REST API. It keeps the
// session token in a local credential cache, so a login survives restarts
// the same way it does on the phone.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deudat/deudat/internal/domain"
)

// Client talks to a deudat backend.
type Client struct {
	baseURL string
	http    *http.Client
	creds   domain.CredentialStore
}

// New creates a client for the backend at baseURL. creds holds the session
// token between runs.
func New(baseURL string, creds domain.CredentialStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
	}
}

// apiError is the error envelope the backend writes.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one JSON round trip. authed attaches the cached session token;
// callers without a cached token get ErrNoSession before any network I/O.
func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, err := c.creds.SessionToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrTransport, err)
		}
	}
	return nil
}

// statusError maps an HTTP error response back to a domain sentinel.
func statusError(resp *http.Response) error {
	var envelope apiError
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrSessionExpired, msg)
	case http.StatusNotFound:
		if strings.Contains(msg, "product") {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, msg)
		}
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	}
	return fmt.Errorf("backend returned %d: %s", resp.StatusCode, msg)
}

// ─── Auth ───────────────────────────────────────────────────────────────────

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, http.MethodPost, "/users/register", false, map[string]string{
		"name": name, "email": email, "password": password,
	}, &u)
	return u, err
}

// Login exchanges credentials for a session token and caches it locally.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		SessionToken string `json:"sessionToken"`
	}
	err := c.do(ctx, http.MethodPost, "/users/login", false, map[string]string{
		"email": email, "password": password,
	}, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return fmt.Errorf("%w: check email and password", domain.ErrInvalidCredentials)
		}
		return err
	}
	return c.creds.SetSessionToken(resp.SessionToken)
}

// Logout drops the cached token.
func (c *Client) Logout() error {
	return c.creds.ClearSessionToken()
}

// CurrentUser resolves the cached token to the logged-in user.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	token, err := c.creds.SessionToken()
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	err = c.do(ctx, http.MethodGet, "/users/token/"+token, false, nil, &u)
	return u, err
}

// ─── Users & Products ───────────────────────────────────────────────────────

// Users lists all board members.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, http.MethodGet, "/users", true, nil, &users)
	return users, err
}

// CreateUser adds a board member without credentials.
func (c *Client) CreateUser(ctx context.Context, name string) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, http.MethodPost, "/users", true, map[string]string{"name": name}, &u)
	return u, err
}

// Products lists the board's products with current prices.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := c.do(ctx, http.MethodGet, "/products", true, nil, &products)
	return products, err
}

// CreateProduct adds a product. price is a decimal string like "1.50".
func (c *Client) CreateProduct(ctx context.Context, name, price string) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, http.MethodPost, "/products", true, map[string]string{
		"name": name, "price": price,
	}, &p)
	return p, err
}

// UpdateProduct renames and reprices a product.
func (c *Client) UpdateProduct(ctx context.Context, id int64, name, price string) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), true, map[string]string{
		"name": name, "price": price,
	}, &p)
	return p, err
}

// ─── Board Transport ────────────────────────────────────────────────────────

// AppendTransaction pushes one ledger entry.
func (c *Client) AppendTransaction(ctx context.Context, userID, productID int64, dir domain.Direction) error {
	return c.do(ctx, http.MethodPost, "/transactions", true, map[string]interface{}{
		"user": userID, "product": productID, "type": dir,
	}, nil)
}

// QuantitiesByUser fetches the user's net counts per product for the current
// epoch.
func (c *Client) QuantitiesByUser(ctx context.Context, userID int64) (map[int64]int, error) {
	var rows []struct {
		ID    int64 `json:"id"`
		Count int   `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/transactions/user/%d", userID), true, nil, &rows); err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

// ─── Debts & Reset ──────────────────────────────────────────────────────────

// DebtReport fetches the assembled debts screen payload.
func (c *Client) DebtReport(ctx context.Context) (domain.DebtReport, error) {
	var report domain.DebtReport
	err := c.do(ctx, http.MethodGet, "/debts", true, nil, &report)
	return report, err
}

// TriggerReset starts a new accounting epoch.
func (c *Client) TriggerReset(ctx context.Context) (domain.ResetEpoch, error) {
	var epoch domain.ResetEpoch
	err := c.do(ctx, http.MethodPost, "/reset", true, nil, &epoch)
	return epoch, err
}
