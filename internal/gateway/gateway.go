// Package gateway is the typed client of the order service cart API. It never
// touches local cart state and never retries.
package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/jsonutil"
	"github.com/xenking/kart-cart/pkg/httpmiddleware"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Config configures the order service client.
type Config struct {
	// BaseURL is the cart API root, e.g. https://shop.example.com/api/orders/cart/.
	BaseURL string
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport overrides the underlying round tripper.
	Transport http.RoundTripper
}

// Client calls the order service cart endpoints.
type Client struct {
	http *http.Client
	base *url.URL
}

// New creates a Client. The transport is wrapped with otelhttp.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport, opts...),
			Timeout:   timeout,
		},
		base: base,
	}, nil
}

// MutationRequest is the body of the add-item and update-quantity calls.
type MutationRequest struct {
	Identity  cart.Identity
	ProductID string
	// VariantID is sent as product_attr; empty sends null.
	VariantID string
	Quantity  int
}

func (r MutationRequest) encode() []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("user_id", func(e *jx.Encoder) { jsonutil.EncodeID(e, r.Identity.UserID) })
		e.Field("user_type", func(e *jx.Encoder) { e.Str(r.Identity.UserType) })
		e.Field("qty", func(e *jx.Encoder) { e.Int(r.Quantity) })
		e.Field("product", func(e *jx.Encoder) { jsonutil.EncodeID(e, r.ProductID) })
		e.Field("product_attr", func(e *jx.Encoder) {
			if r.VariantID == "" {
				e.Null()
				return
			}
			jsonutil.EncodeID(e, r.VariantID)
		})
	})
	return append([]byte(nil), e.Bytes()...)
}

// AddItem calls POST add-item. The caller must refetch to observe the effect.
func (c *Client) AddItem(ctx context.Context, req MutationRequest) error {
	_, err := c.do(ctx, "add item", http.MethodPost, "add-item", nil, req.encode(), req.Identity)
	return err
}

// UpdateQuantity calls POST update-quantity.
func (c *Client) UpdateQuantity(ctx context.Context, req MutationRequest) error {
	_, err := c.do(ctx, "update quantity", http.MethodPost, "update-quantity", nil, req.encode(), req.Identity)
	return err
}

// RemoveItem calls DELETE remove-item/{cartItemID}.
func (c *Client) RemoveItem(ctx context.Context, id cart.Identity, cartItemID string) error {
	if cartItemID == "" {
		return &cart.ValidationError{Field: "cart_item_id", Reason: cart.ErrItemIDRequired}
	}
	_, err := c.do(ctx, "remove item", http.MethodDelete, "remove-item/"+url.PathEscape(cartItemID), nil, nil, id)
	return err
}

// Clear calls DELETE clear for the identity's cart.
func (c *Client) Clear(ctx context.Context, id cart.Identity) error {
	_, err := c.do(ctx, "clear cart", http.MethodDelete, "clear", userQuery(id), nil, id)
	return err
}

// List calls GET cart and decodes the remote rows. A 404 is an empty cart.
func (c *Client) List(ctx context.Context, id cart.Identity) ([]RemoteItem, error) {
	body, err := c.do(ctx, "list cart", http.MethodGet, "cart", userQuery(id), nil, id)
	if err != nil {
		var apiErr *cart.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return []RemoteItem{}, nil
		}
		return nil, err
	}

	items, err := decodeList(body)
	if err != nil {
		return nil, &cart.APIError{Op: "list cart", Status: http.StatusOK, Message: "malformed cart payload: " + err.Error()}
	}
	return items, nil
}

func userQuery(id cart.Identity) url.Values {
	return url.Values{"user_id": []string{id.UserID}}
}

func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body []byte,
	id cart.Identity,
) ([]byte, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", op)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id.Token != "" {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}
	requestID := httpmiddleware.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", requestID)

	lg := zctx.From(ctx).With(
		zap.String("op", op),
		zap.String("request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		lg.Error("Order service unreachable", zap.Error(err))
		return nil, &cart.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		lg.Error("Read order service response", zap.Error(err))
		return nil, &cart.NetworkError{Op: op, Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &cart.APIError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode != http.StatusNotFound || method != http.MethodGet {
			lg.Error("Order service rejected request",
				zap.Int("status", resp.StatusCode),
				zap.String("message", apiErr.Message),
			)
		}
		return nil, apiErr
	}

	lg.Debug("Order service call succeeded", zap.Int("status", resp.StatusCode))
	return data, nil
}

// errorMessage extracts a server-supplied message from an error body. The
// first of message, detail or error that is a string wins.
func errorMessage(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 || !jx.Valid(body) {
		return ""
	}

	found := map[string]string{}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message", "detail", "error":
			if d.Next() == jx.String {
				s, err := d.Str()
				if err != nil {
					return err
				}
				found[key] = s
				return nil
			}
		}
		return d.Skip()
	})

	for _, key := range []string{"message", "detail", "error"} {
		if s := found[key]; s != "" {
			return s
		}
	}
	return ""
}
