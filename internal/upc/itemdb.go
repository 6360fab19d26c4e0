package upc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/guarzo/fbascout/internal/ratelimit"
)

// DefaultItemDBURL is the free UPCitemdb endpoint.
const DefaultItemDBURL = "https://api.upcitemdb.com/prod/trial"

// ItemDBClient looks UPCs up in UPCitemdb, which carries the Amazon ASIN
// for many retail products.
type ItemDBClient struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
}

type itemDBResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Items   []struct {
		EAN   string `json:"ean"`
		UPC   string `json:"upc"`
		Title string `json:"title"`
		Brand string `json:"brand"`
		ASIN  string `json:"asin"`
	} `json:"items"`
}

// NewItemDBClient creates a client against baseURL (DefaultItemDBURL when
// empty). limiter may be nil.
func NewItemDBClient(baseURL string, limiter *ratelimit.Limiter) *ItemDBClient {
	if baseURL == "" {
		baseURL = DefaultItemDBURL
	}
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Accept", "application/json")

	return &ItemDBClient{client: client, limiter: limiter}
}

// Lookup returns the mapping UPCitemdb holds for code
func (c *ItemDBClient) Lookup(ctx context.Context, code string) (*Mapping, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("upc", code).
		Get("/lookup")
	if err != nil {
		return nil, fmt.Errorf("upcitemdb lookup: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoMapping
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("upcitemdb lookup: status %d", resp.StatusCode())
	}

	var body itemDBResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode upcitemdb response: %w", err)
	}

	for _, item := range body.Items {
		if item.ASIN == "" {
			continue
		}
		return &Mapping{
			UPC:        code,
			ASIN:       strings.ToUpper(item.ASIN),
			Title:      item.Title,
			Brand:      item.Brand,
			Source:     "upcitemdb",
			Confidence: 0.8,
		}, nil
	}
	return nil, ErrNoMapping
}

// ResolveIdentifier implements Remote
func (c *ItemDBClient) ResolveIdentifier(ctx context.Context, code string) (string, error) {
	m, err := c.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	return m.ASIN, nil
}
