package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"

	"subscription-api/internal/config"
	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/infra/logging"
	"subscription-api/internal/infra/metrics"
)

var _ adapter.BillingClient = (*HTTPClient)(nil)

// HTTPClient talks to the billing service REST API.
//
// Every logical call carries one Idempotency-Key across its retries and a
// fresh X-Request-Id per attempt. Transport errors, 429 and 5xx are retried
// with exponential backoff.
type HTTPClient struct {
	baseURL    *url.URL
	http       *http.Client
	maxRetries uint64
	retryBase  time.Duration
	log        *zerolog.Logger
}

// NewHTTPClient builds a client from cfg. When cfg.TokenURL is set requests
// are authorized with a bearer token obtained by the OAuth2 password grant.
func NewHTTPClient(ctx context.Context, cfg config.BillingConfig, logger *zerolog.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("billing.base_url %q is not an absolute url", cfg.BaseURL)
	}

	hc := cleanhttp.DefaultPooledClient()
	if cfg.TokenURL != "" {
		oc := &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, cleanhttp.DefaultPooledClient())
		src := oauth2.ReuseTokenSource(nil, passwordTokenSource{ctx: tokenCtx, conf: oc, username: cfg.Username, password: cfg.Password})
		hc = oauth2.NewClient(tokenCtx, src)
	}
	hc.Timeout = cfg.Timeout

	l := logger.With().Str("component", "BillingHTTPClient").Logger()
	return &HTTPClient{
		baseURL:    u,
		http:       hc,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		log:        &l,
	}, nil
}

// passwordTokenSource logs in again whenever the cached token expires.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

func (c *HTTPClient) CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error) {
	var inv model.Invoice
	if err := c.do(ctx, "create_invoice", http.MethodPost, "/api/v1/invoices", nil, req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *HTTPClient) GetInvoiceByAccount(ctx context.Context, accountID string) (*model.Invoice, error) {
	var inv model.Invoice
	q := url.Values{"service_id": {accountID}}
	if err := c.do(ctx, "get_invoice", http.MethodGet, "/api/v1/invoices", q, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *HTTPClient) CreateRefund(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var inv model.Invoice
	path := "/api/v1/invoices/" + url.PathEscape(invoiceID) + "/refund"
	if err := c.do(ctx, "create_refund", http.MethodPost, path, nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// statusError is a non-2xx answer from the billing service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("billing responded %d: %s", e.code, e.body)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		payload = b
	}
	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	idempotencyKey := uuid.NewString()
	l := logging.With(ctx, c.log)

	start := time.Now()
	attempt := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Idempotency-Key", idempotencyKey)
		req.Header.Set("X-Request-Id", uuid.NewString())

		resp, err := c.http.Do(req)
		if err != nil {
			l.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("billing request failed")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				l.Warn().Int("status", resp.StatusCode).Str("op", op).Int("attempt", attempt).Msg("billing request retrying")
				return retry.RetryableError(serr)
			}
			return serr
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
		return nil
	})

	outcome := "ok"
	defer func() { metrics.ObserveBillingCall(op, outcome, time.Since(start)) }()
	if err == nil {
		return nil
	}

	var serr *statusError
	if errors.As(err, &serr) && serr.code == http.StatusNotFound {
		outcome = "not_found"
		return fmt.Errorf("billing %s: %w", op, domain.ErrNotFound)
	}
	outcome = "error"
	l.Error().Err(err).Str("op", op).Int("attempts", attempt).Msg("billing call failed")
	return domain.External("billing "+op, err)
}
