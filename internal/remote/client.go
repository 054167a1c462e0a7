package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// LineItem is the wire representation of a cart line. Field spelling
// (snake_case ids, camelCase imageUrl) matches the server contract.
// unit_price is in integer cents.
type LineItem struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	UnitPriceCents int64  `json:"unit_price"`
	Quantity       int64  `json:"quantity"`
}

// Cart is the remote cart resource. A nil ID means no cart exists yet for
// the user.
type Cart struct {
	ID        *int64     `json:"id"`
	Items     []LineItem `json:"items"`
	UpdatedAt int64      `json:"updatedAt,omitempty"`
}

// Client talks to the remote cart resource. Writes are blind full
// replacements; the server keeps no version token.
type Client interface {
	Fetch(ctx context.Context, userID int64) (*Cart, error)
	Create(ctx context.Context, userID int64, items []LineItem) (*Cart, error)
	Replace(ctx context.Context, cartID int64, items []LineItem) (*Cart, error)
	Drop(ctx context.Context, cartID int64) error
}

type httpClient struct {
	base   string
	client *http.Client
}

// NewHTTP returns a Client for the cart API rooted at base.
func NewHTTP(base string, client *http.Client) Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClient{base: base, client: client}
}

func (c *httpClient) Fetch(ctx context.Context, userID int64) (*Cart, error) {
	endpoint := fmt.Sprintf("%s/carts?user_id=%s", c.base, url.QueryEscape(strconv.FormatInt(userID, 10)))
	return c.doCart(ctx, http.MethodGet, endpoint, nil)
}

type createRequest struct {
	UserID int64      `json:"user_id"`
	Items  []LineItem `json:"items"`
}

func (c *httpClient) Create(ctx context.Context, userID int64, items []LineItem) (*Cart, error) {
	body, err := json.Marshal(createRequest{UserID: userID, Items: items})
	if err != nil {
		return nil, errors.Wrap(err, "encode create cart")
	}
	return c.doCart(ctx, http.MethodPost, c.base+"/carts", body)
}

type replaceRequest struct {
	Items []LineItem `json:"items"`
}

func (c *httpClient) Replace(ctx context.Context, cartID int64, items []LineItem) (*Cart, error) {
	body, err := json.Marshal(replaceRequest{Items: items})
	if err != nil {
		return nil, errors.Wrap(err, "encode replace cart")
	}
	endpoint := fmt.Sprintf("%s/carts/%d", c.base, cartID)
	return c.doCart(ctx, http.MethodPut, endpoint, body)
}

func (c *httpClient) Drop(ctx context.Context, cartID int64) error {
	endpoint := fmt.Sprintf("%s/carts/%d", c.base, cartID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build delete cart request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete cart")
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("delete cart: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) doCart(ctx context.Context, method, endpoint string, body []byte) (*Cart, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", method)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("%s %s: unexpected status %d", method, endpoint, resp.StatusCode)
	}

	var cart Cart
	if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
		return nil, errors.Wrap(err, "decode cart body")
	}
	return &cart, nil
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
