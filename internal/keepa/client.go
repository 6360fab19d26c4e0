package keepa

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"

	"github.com/guarzo/fbascout/internal/ratelimit"
)

// DefaultBaseURL is the public Keepa API.
const DefaultBaseURL = "https://api.keepa.com"

// DomainUS is Keepa's marketplace id for amazon.com.
const DomainUS = 1

var (
	ErrNotFound    = errors.New("keepa: product not found")
	ErrRateLimited = errors.New("keepa: out of tokens")
	ErrNoAPIKey    = errors.New("keepa: no API key configured")
)

// Config holds Keepa connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Domain  int           `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
	// Offers asks Keepa for up to this many live offers per product (20 to
	// 100, each costing extra tokens). Zero skips offer data.
	Offers int `yaml:"offers"`
	// TokensPerMinute is the plan's refill rate.
	TokensPerMinute int `yaml:"tokens_per_minute"`
}

// DefaultConfig returns settings for amazon.com on the basic plan.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Domain:          DomainUS,
		Timeout:         30 * time.Second,
		TokensPerMinute: 20,
	}
}

// Client talks to the Keepa product endpoint. It implements
// history.FeedFetcher, bulk.AnalyticsFetcher and bulk.Resolver.
type Client struct {
	config  Config
	client  *resty.Client
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewClient creates a Keepa client. limiter may be nil, in which case one is
// built from config.TokensPerMinute.
func NewClient(config Config, limiter *ratelimit.Limiter) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Domain == 0 {
		config.Domain = def.Domain
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.TokensPerMinute <= 0 {
		config.TokensPerMinute = def.TokensPerMinute
	}
	if limiter == nil {
		limiter = ratelimit.NewPerMinute(config.TokensPerMinute)
	}

	client := resty.New()
	client.SetTimeout(config.Timeout)
	client.SetBaseURL(strings.TrimRight(config.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Accept-Encoding", "gzip, br")

	return &Client{
		config:  config,
		client:  client,
		limiter: limiter,
		now:     time.Now,
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.config.APIKey != ""
}

type productResponse struct {
	Products   []product `json:"products"`
	TokensLeft int       `json:"tokensLeft"`
	RefillIn   int       `json:"refillIn"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// queryProducts calls /product with params plus the key and domain.
func (c *Client) queryProducts(ctx context.Context, params map[string]string) ([]product, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("key", c.config.APIKey).
		SetQueryParam("domain", strconv.Itoa(c.config.Domain)).
		SetQueryParams(params).
		Get("/product")
	if err != nil {
		return nil, fmt.Errorf("keepa request: %w", err)
	}
	raw := resp.RawResponse
	defer raw.Body.Close()

	switch raw.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("keepa: HTTP %d: %s", raw.StatusCode, raw.Status)
	}

	body, err := bodyReader(raw)
	if err != nil {
		return nil, fmt.Errorf("keepa body: %w", err)
	}

	var out productResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode keepa response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("keepa: %s: %s", out.Error.Type, out.Error.Message)
	}

	slog.Debug("keepa request", "tokensLeft", out.TokensLeft, "products", len(out.Products))
	return out.Products, nil
}

// bodyReader undoes the Content-Encoding the server applied.
func bodyReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// Product fetches one product with its full history.
func (c *Client) Product(ctx context.Context, asin string) (*product, error) {
	params := map[string]string{"asin": asin, "history": "1"}
	if c.config.Offers > 0 {
		params["offers"] = strconv.Itoa(c.config.Offers)
	}

	products, err := c.queryProducts(ctx, params)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if strings.EqualFold(products[i].ASIN, asin) {
			return &products[i], nil
		}
	}
	return nil, ErrNotFound
}

// ResolveIdentifier looks a UPC/EAN up with Keepa's code search and returns
// the first matching ASIN.
func (c *Client) ResolveIdentifier(ctx context.Context, code string) (string, error) {
	products, err := c.queryProducts(ctx, map[string]string{"code": code, "history": "0"})
	if err != nil {
		return "", err
	}
	for _, p := range products {
		if p.ASIN != "" {
			return strings.ToUpper(p.ASIN), nil
		}
	}
	return "", ErrNotFound
}
