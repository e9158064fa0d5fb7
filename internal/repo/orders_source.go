package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/retry"
	"github.com/orderstack/order-agent/internal/utils"
)

// knownOrderKeys are checked in order before the heuristic scan.
var knownOrderKeys = []string{"raw_orders", "orders"}

// RawBatch is the provider's order list, verbatim, plus its newline-joined text.
type RawBatch struct {
	Lines []string
	Text  string
}

// OrdersSourceConfig configures the raw order provider client.
type OrdersSourceConfig struct {
	BaseURL       string
	OrdersPath    string
	OrderPath     string
	Limit         int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// OrdersSourceClient fetches raw order text from the upstream customer API.
type OrdersSourceClient struct {
	baseURL    string
	ordersPath string
	orderPath  string
	limit      int
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// NewOrdersSourceClient constructs a client targeting the configured provider.
func NewOrdersSourceClient(cfg OrdersSourceConfig, logger *slog.Logger) *OrdersSourceClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.OrdersPath == "" {
		cfg.OrdersPath = "/api/orders"
	}
	if cfg.OrderPath == "" {
		cfg.OrderPath = "/api/order"
	}

	c := &OrdersSourceClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		ordersPath: cfg.OrdersPath,
		orderPath:  cfg.OrderPath,
		limit:      cfg.Limit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	c.policy = retry.Fixed(cfg.RetryAttempts, cfg.RetryDelay, isTransientFetchError)
	c.policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("fetch attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", cfg.RetryDelay),
			slog.Any("error", err))
	}
	return c
}

// WithSleep swaps the retry wait, letting tests run without real delays.
func (c *OrdersSourceClient) WithSleep(sleep retry.SleepFunc) *OrdersSourceClient {
	c.policy.Sleep = sleep
	return c
}

// FetchRawOrders retrieves the raw order list. Transient failures (network, timeout,
// non-2xx) are retried per the policy; an unrecognisable payload fails immediately.
func (c *OrdersSourceClient) FetchRawOrders(ctx context.Context) (RawBatch, error) {
	if c == nil {
		return RawBatch{}, fmt.Errorf("orders source client not initialised")
	}
	if c.baseURL == "" {
		return RawBatch{}, fmt.Errorf("orders source base URL not configured")
	}

	endpoint := c.ordersURL()
	c.logger.Info("fetching raw orders", slog.String("url", endpoint))

	var lines []string
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		body, err := c.get(ctx, endpoint)
		if err != nil {
			metrics.ObserveFetchAttempt(metrics.OutcomeError)
			return err
		}
		metrics.ObserveFetchAttempt(metrics.OutcomeSuccess)
		found, fallback, err := locateOrderList(body)
		if err != nil {
			return err
		}
		if fallback {
			c.logger.Warn("used fallback key detection for API response")
		}
		lines = found
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Warn("fetch cancelled", slog.Any("error", ctxErr))
			return RawBatch{}, utils.NewAppError("fetch", "request cancelled", fmt.Errorf("%w: %v", utils.ErrFetchFailed, ctxErr))
		}
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			c.logger.Error("fetch failed", slog.Int("attempts", exhausted.Attempts), slog.Any("error", exhausted.Err))
			return RawBatch{}, utils.NewAppError("fetch",
				fmt.Sprintf("Failed to fetch data after %d attempts", exhausted.Attempts),
				fmt.Errorf("%w: %v", utils.ErrFetchFailed, exhausted.Err))
		}
		if errors.Is(err, utils.ErrNoOrderList) {
			return RawBatch{}, err
		}
		return RawBatch{}, utils.NewAppError("fetch", "request failed", fmt.Errorf("%w: %v", utils.ErrFetchFailed, err))
	}

	batch := RawBatch{Lines: lines, Text: strings.Join(lines, "\n")}
	c.logger.Info("fetched raw orders", slog.Int("orders", len(batch.Lines)), slog.Int("chars", len(batch.Text)))
	return batch, nil
}

// FetchRawOrder looks up a single raw order line by id. It is not retried.
func (c *OrdersSourceClient) FetchRawOrder(ctx context.Context, orderID string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("orders source base URL %w", utils.ErrNotConfigured)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", utils.ErrInvalidRequest)
	}

	body, err := c.get(ctx, c.resolvePath(path.Join(c.orderPath, url.PathEscape(orderID))))
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", utils.ErrOrderNotFound, orderID)
		}
		return "", fmt.Errorf("orders source order request failed: %w", err)
	}
	var response struct {
		Status   string `json:"status"`
		RawOrder string `json:"raw_order"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if response.RawOrder == "" {
		return "", fmt.Errorf("%w: %s", utils.ErrOrderNotFound, orderID)
	}
	return response.RawOrder, nil
}

func (c *OrdersSourceClient) ordersURL() string {
	endpoint := c.resolvePath(c.ordersPath)
	if c.limit <= 0 || endpoint == "" {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *OrdersSourceClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *OrdersSourceClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &statusError{status: resp.StatusCode, text: resp.Status}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// statusError marks a non-2xx provider reply.
type statusError struct {
	status int
	text   string
}

func (e *statusError) Error() string { return fmt.Sprintf("orders source returned %s", e.text) }

// isTransientFetchError reports network, timeout and status failures. Shape errors are final.
func isTransientFetchError(err error) bool {
	if err == nil || errors.Is(err, utils.ErrNoOrderList) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// locateOrderList finds the raw order strings in a provider payload. Known keys win;
// otherwise the first top-level array of strings, in document order, is used.
func locateOrderList(body []byte) ([]string, bool, error) {
	fields, err := decodeOrderedObject(body)
	if err != nil {
		return nil, false, utils.NewAppError("fetch", "decode provider payload", fmt.Errorf("%w: %v", utils.ErrNoOrderList, err))
	}

	byKey := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		if _, dup := byKey[f.key]; !dup {
			byKey[f.key] = f.value
		}
	}
	for _, key := range knownOrderKeys {
		if lines, ok := stringList(byKey[key]); ok {
			return lines, false, nil
		}
	}
	if nested, ok := byKey["data"]; ok {
		var inner map[string]json.RawMessage
		if json.Unmarshal(nested, &inner) == nil {
			if lines, ok := stringList(inner["raw_orders"]); ok {
				return lines, false, nil
			}
		}
	}
	for _, f := range fields {
		if lines, ok := stringList(f.value); ok {
			return lines, true, nil
		}
	}
	return nil, false, utils.ErrNoOrderList
}

type orderedField struct {
	key   string
	value json.RawMessage
}

func decodeOrderedObject(body []byte) ([]orderedField, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var fields []orderedField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, orderedField{key: key, value: value})
	}
	return fields, nil
}

// stringList accepts a non-empty JSON array of strings containing at least one non-blank entry.
func stringList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil || len(lines) == 0 {
		return nil, false
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return lines, true
		}
	}
	return nil, false
}
