package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Client is a typed HTTP client for a marketplace server.
type Client struct {
	host   string
	client *resty.Client
}

func NewClient(host string) *Client {
	host = strings.TrimSuffix(host, "/")
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Client{host: host, client: client}
}

// APIError carries the server's error body for a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	return r
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body(), &body)
	if body.Error == "" {
		body.Error = strings.TrimSpace(string(resp.Body()))
	}
	return &APIError{Status: resp.StatusCode(), Message: body.Error}
}

func (c *Client) get(ctx context.Context, endpoint string, query map[string]string, out any) error {
	req := c.newRequest(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if out != nil {
		req.SetResult(out)
	}
	return checkResponse(req.Get(endpoint))
}

func (c *Client) send(ctx context.Context, method, endpoint string, body, out any) error {
	req := c.newRequest(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	switch method {
	case "POST":
		return checkResponse(req.Post(endpoint))
	case "PUT":
		return checkResponse(req.Put(endpoint))
	default:
		return errors.Errorf("unsupported method: %s", method)
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

// --- bank ---

func (c *Client) Deposit(ctx context.Context, address string, amount decimal.Decimal) (BalanceResponse, error) {
	var out BalanceResponse
	err := c.send(ctx, "POST", "/api/bank/deposit", map[string]any{
		"address": address,
		"amount":  amount,
	}, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context, address string) (BalanceResponse, error) {
	var out BalanceResponse
	err := c.get(ctx, "/api/bank/balances/"+url.PathEscape(address), nil, &out)
	return out, err
}

// --- registries and tokens ---

func (c *Client) CreateRegistry(ctx context.Context, name string) (Registry, error) {
	var out Registry
	err := c.send(ctx, "POST", "/api/registries/", map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) Registries(ctx context.Context) ([]Registry, error) {
	var out []Registry
	err := c.get(ctx, "/api/registries/", nil, &out)
	return out, err
}

func (c *Client) Mint(ctx context.Context, registry, caller, uri string) (Token, error) {
	var out Token
	err := c.send(ctx, "POST", "/api/registries/"+url.PathEscape(registry)+"/tokens", map[string]string{
		"caller": caller,
		"uri":    uri,
	}, &out)
	return out, err
}

func (c *Client) GetToken(ctx context.Context, registry string, tokenID int64) (Token, error) {
	var out Token
	err := c.get(ctx, fmt.Sprintf("/api/registries/%s/tokens/%d", url.PathEscape(registry), tokenID), nil, &out)
	return out, err
}

func (c *Client) Transfer(ctx context.Context, registry string, tokenID int64, caller, to string) (Token, error) {
	var out Token
	err := c.send(ctx, "POST", fmt.Sprintf("/api/registries/%s/tokens/%d/transfer", url.PathEscape(registry), tokenID), map[string]string{
		"caller": caller,
		"to":     to,
	}, &out)
	return out, err
}

// --- market ---

func (c *Client) ListingFee(ctx context.Context) (ListingFee, error) {
	var out ListingFee
	err := c.get(ctx, "/api/market/listing-fee", nil, &out)
	return out, err
}

func (c *Client) SetListingFee(ctx context.Context, caller string, fee decimal.Decimal) (ListingFee, error) {
	var out ListingFee
	err := c.send(ctx, "PUT", "/api/market/listing-fee", map[string]any{
		"caller": caller,
		"fee":    fee,
	}, &out)
	return out, err
}

func (c *Client) CreateItem(ctx context.Context, registry string, tokenID int64, caller string, price, feePayment decimal.Decimal) (MarketItem, error) {
	var out MarketItem
	err := c.send(ctx, "POST", "/api/market/items", map[string]any{
		"caller":      caller,
		"registry":    registry,
		"token_id":    tokenID,
		"price":       price,
		"fee_payment": feePayment,
	}, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, registry string, itemID int64, caller string, payment decimal.Decimal) (MarketItem, error) {
	var out MarketItem
	err := c.send(ctx, "POST", fmt.Sprintf("/api/market/items/%d/buy", itemID), map[string]any{
		"caller":   caller,
		"registry": registry,
		"payment":  payment,
	}, &out)
	return out, err
}

// MarketItems returns the unsold listings.
func (c *Client) MarketItems(ctx context.Context) ([]MarketItem, error) {
	var out []MarketItem
	err := c.get(ctx, "/api/market/items", nil, &out)
	return out, err
}

// MyNFTs returns the items an address bought.
func (c *Client) MyNFTs(ctx context.Context, owner string) ([]MarketItem, error) {
	var out []MarketItem
	err := c.get(ctx, "/api/market/items", map[string]string{"owner": owner}, &out)
	return out, err
}

// ItemsListed returns everything an address ever listed, sold or not.
func (c *Client) ItemsListed(ctx context.Context, seller string) ([]MarketItem, error) {
	var out []MarketItem
	err := c.get(ctx, "/api/market/items", map[string]string{"seller": seller}, &out)
	return out, err
}

// --- receipts ---

func (c *Client) Receipts(ctx context.Context, limit int) ([]Receipt, error) {
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = fmt.Sprint(limit)
	}
	var out []Receipt
	err := c.get(ctx, "/api/receipts", query, &out)
	return out, err
}

// --- content store ---

func (c *Client) StoreAdd(ctx context.Context, blob []byte) (StoredBlob, error) {
	var out StoredBlob
	req := c.newRequest(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(blob).
		SetResult(&out)
	return out, checkResponse(req.Post("/api/store"))
}

// StoreAddJSON marshals v and stores it, returning the cid and uri.
func (c *Client) StoreAddJSON(ctx context.Context, v any) (StoredBlob, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return StoredBlob{}, errors.Wrap(err, "marshal blob")
	}
	return c.StoreAdd(ctx, blob)
}

func (c *Client) StoreGet(ctx context.Context, cid string) ([]byte, error) {
	req := c.newRequest(ctx)
	resp, err := req.Get("/api/store/" + url.PathEscape(cid))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// --- events ---

// WatchEvents dials the event stream and forwards decoded events on the
// returned channel until ctx is done or the server closes. The channel
// is closed when the stream ends.
func (c *Client) WatchEvents(ctx context.Context) (<-chan Event, error) {
	wsURL := c.host
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	wsURL += "/ws/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial events stream")
	}

	out := make(chan Event, 16)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
