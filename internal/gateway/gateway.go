package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/domain"
)

// ── Remote Catalog Gateway ─────────────────────────────────
// Thin transport over the backend's three resource collections.
// No transformation and no caching happen here.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Resource names a backend collection.
type Resource string

const (
	Books      Resource = "books"
	Authors    Resource = "authors"
	Categories Resource = "categories"
)

// Gateway is the CRUD contract against the backend.
type Gateway interface {
	List(ctx context.Context, res Resource) ([]domain.RawRecord, error)
	Create(ctx context.Context, res Resource, payload any) (domain.RawRecord, error)
	Update(ctx context.Context, res Resource, id string, payload any) (domain.RawRecord, error)
	Delete(ctx context.Context, res Resource, id string) error
}

// Pinger is implemented by gateways that can probe backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPGateway implements Gateway over JSON/HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default client (useful with httptest).
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) { g.client.Timeout = d }
}

// NewHTTPGateway creates a gateway rooted at baseURL (e.g. http://backend:8010).
func NewHTTPGateway(baseURL string, opts ...Option) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// collectionPath follows the backend routes: authors are mounted with a
// trailing slash, the other collections without.
func collectionPath(res Resource) string {
	if res == Authors {
		return "/authors/"
	}
	return "/" + string(res)
}

func itemPath(res Resource, id string) string {
	return "/" + string(res) + "/" + url.PathEscape(id)
}

func (g *HTTPGateway) List(ctx context.Context, res Resource) ([]domain.RawRecord, error) {
	var out []domain.RawRecord
	if err := g.do(ctx, http.MethodGet, collectionPath(res), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.RawRecord{}
	}
	return out, nil
}

func (g *HTTPGateway) Create(ctx context.Context, res Resource, payload any) (domain.RawRecord, error) {
	var out domain.RawRecord
	if err := g.do(ctx, http.MethodPost, collectionPath(res), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) Update(ctx context.Context, res Resource, id string, payload any) (domain.RawRecord, error) {
	var out domain.RawRecord
	if err := g.do(ctx, http.MethodPut, itemPath(res, id), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) Delete(ctx context.Context, res Resource, id string) error {
	return g.do(ctx, http.MethodDelete, itemPath(res, id), nil, nil)
}

// Ping calls GET /health.
func (g *HTTPGateway) Ping(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload, out any) error {
	target := g.baseURL + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{
			Method:  method,
			URL:     target,
			Status:  resp.StatusCode,
			Body:    string(raw),
			Message: detailMessage(raw),
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// detailMessage extracts FastAPI's {"detail": "..."} or a {"message": "..."}.
func detailMessage(body []byte) string {
	var envelope struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	switch d := envelope.Detail.(type) {
	case string:
		return d
	case nil:
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
	return envelope.Message
}
