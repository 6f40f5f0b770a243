package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/infra/httpclient"
)

const maxResponseBytes = 2 * 1024 * 1024

// Client is the shared transport to the backend. Caller-bound views are obtained with Connect.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type Options struct {
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

type RequestError struct {
	Op         string
	StatusCode int
	Code       string
	Temporary  bool
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	default:
		return e.Op
	}
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(baseURL string, opts Options) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		return nil, &RequestError{
			Op:  "create backend client",
			Err: errors.New("backend url is empty"),
		}
	}

	parsed, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, &RequestError{Op: "parse backend url", Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &RequestError{
			Op:  "validate backend url",
			Err: fmt.Errorf("invalid backend url: %s", trimmedBaseURL),
		}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.New(opts.Timeout)
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(trimmedBaseURL, "/"),
		httpClient: httpClient,
		logger:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTemporary(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("backend circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c, nil
}

// Connect returns the backend view bound to the identity behind token.
func (c *Client) Connect(token string) gateway.Backend {
	return &Actor{client: c, token: strings.TrimSpace(token)}
}

// Connected reports whether the breaker currently lets calls through.
func (c *Client) Connected() bool {
	return c != nil && c.breaker.State() != gobreaker.StateOpen
}

// IsTemporary reports transport failures and server-side errors.
func IsTemporary(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Temporary
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) DoJSON(ctx context.Context, token, op, method, path string, requestBody, responseBody any) error {
	if c == nil || c.httpClient == nil {
		return &RequestError{Op: op, Err: errors.New("backend client is not initialized")}
	}

	var payload []byte
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return &RequestError{Op: op, Err: fmt.Errorf("marshal request body: %w", err)}
		}
		payload = raw
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, token, op, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w", op, gateway.ErrNoConnection)
		}
		return err
	}

	responseBytes, _ := result.([]byte)
	if responseBody == nil || len(responseBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBytes, responseBody); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

func (c *Client) do(ctx context.Context, token, op, method, path string, body []byte) ([]byte, error) {
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+ensureLeadingSlash(path), bodyReader)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{
			Op:        op,
			Temporary: isTemporaryNetworkError(err),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	responseBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return nil, &RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Temporary:  true,
			Err:        readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp.StatusCode, responseBytes)
	}

	return responseBytes, nil
}

func statusError(op string, statusCode int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	reqErr := &RequestError{
		Op:         op,
		StatusCode: statusCode,
		Code:       payload.Code,
		Temporary:  statusCode >= 500,
		Err:        errors.New(message),
	}

	if statusCode == http.StatusNotFound {
		reqErr.Err = fmt.Errorf("%s: %w", message, gateway.ErrNotFound)
	}

	return reqErr
}

func isTemporaryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func ensureLeadingSlash(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}
