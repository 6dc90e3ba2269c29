package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/shelfsync/pkg/api"
)

// DefaultTimeout bounds every request made by the client
const DefaultTimeout = 30 * time.Second

// ErrUnauthorized is wrapped by TransportError for 401 responses
var ErrUnauthorized = errors.New("unauthorized")

// TransportError reports a network failure or a non-2xx response.
// StatusCode is zero when no response was received.
type TransportError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TokenSource provides the bearer token for authenticated requests
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewClient создает новый API клиент.
// tokens may be nil for unauthenticated calls (register, login, health).
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, "register", http.MethodPost, "/api/v1/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, "login", http.MethodPost, "/api/v1/auth/login", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks that the server is reachable and healthy
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, "health", http.MethodGet, "/api/v1/health", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe реализует monitor.Prober
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Push sends a batch of queued operations
func (c *Client) Push(ctx context.Context, ops []api.PushOperation) ([]api.PushResult, error) {
	var results []api.PushResult
	if err := c.doRequest(ctx, "push", http.MethodPost, "/api/v1/sync/push", ops, &results, true); err != nil {
		return nil, err
	}
	return results, nil
}

// Pull fetches changes recorded after since
func (c *Client) Pull(ctx context.Context, since time.Time) (*api.PullResponse, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set(api.SinceParam, api.FormatSince(since))
	}
	path := "/api/v1/sync/pull"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp api.PullResponse
	if err := c.doRequest(ctx, "pull", http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос. Все ошибки возвращаются как *TransportError.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body, result any, auth bool) error {
	fail := func(status int, err error) error {
		return &TransportError{Op: op, StatusCode: status, Err: err}
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fail(0, fmt.Errorf("failed to marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		if c.tokens == nil {
			return fail(0, fmt.Errorf("%w: not logged in", ErrUnauthorized))
		}
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return fail(0, fmt.Errorf("%w: %w", ErrUnauthorized, err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			switch {
			case errResp.Message != "":
				msg = errResp.Message
			case errResp.Error != "":
				msg = errResp.Error
			}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fail(resp.StatusCode, fmt.Errorf("%w: %s", ErrUnauthorized, msg))
		}
		return fail(resp.StatusCode, errors.New(msg))
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fail(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}
