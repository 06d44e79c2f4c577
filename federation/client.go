package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

const (
	apiPrefix = "/api/api-neurons"

	clientTimeout = 30 * time.Second
)

// Client talks to the federation's api-neuron endpoints. It stores the JWT
// issued at registration and attaches it to every later request.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger

	mu    sync.RWMutex
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the federation at baseURL. A nil logger
// falls back to the package logger.
func NewClient(baseURL string, logger log.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = log.GetLoggerWithName("federation.client")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: clientTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the JWT issued at registration, empty before Register.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Registered reports whether the client holds a federation token.
func (c *Client) Registered() bool {
	return c.Token() != ""
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Register announces the neuron and stores the issued JWT for later calls.
func (c *Client) Register(ctx context.Context, reg *Registration) error {
	var env envelope
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/register", reg, &env, http.StatusCreated); err != nil {
		return err
	}
	var payload struct {
		Token        string `json:"token"`
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return errors.NewFederationError("register", c.baseURL, 0, err)
	}
	if payload.Token == "" {
		return errors.NewFederationError("register", c.baseURL, 0, errors.New("registration response carried no token"))
	}
	c.setToken(payload.Token)
	c.logger.Info("registered with federation",
		log.NeuronIDKey, reg.NeuronID,
		log.FederationURLKey, c.baseURL,
	)
	if payload.Instructions != "" {
		c.logger.Debug("registration instructions", "instructions", payload.Instructions)
	}
	return nil
}

// Heartbeat reports liveness and returns the number of commands waiting on
// the federation side.
func (c *Client) Heartbeat(ctx context.Context, hb *Heartbeat) (int, error) {
	var env envelope
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/heartbeat", hb, &env, http.StatusOK); err != nil {
		return 0, err
	}
	var payload struct {
		PendingCommands int `json:"pendingCommands"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return 0, errors.NewFederationError("heartbeat", c.baseURL, 0, err)
		}
	}
	return payload.PendingCommands, nil
}

// PendingCommands fetches the control instructions queued for this neuron.
func (c *Client) PendingCommands(ctx context.Context) ([]Command, error) {
	var env envelope
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/commands/pending", nil, &env, http.StatusOK); err != nil {
		return nil, err
	}
	var cmds []Command
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cmds); err != nil {
			return nil, errors.NewFederationError("pending commands", c.baseURL, 0, err)
		}
	}
	return cmds, nil
}

// Acknowledge confirms receipt of a command before execution starts.
func (c *Client) Acknowledge(ctx context.Context, commandID string) error {
	path := fmt.Sprintf("%s/commands/%s/acknowledge", apiPrefix, commandID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, http.StatusOK)
}

// Complete reports the outcome of an executed command.
func (c *Client) Complete(ctx context.Context, commandID string, result CommandResult) error {
	path := fmt.Sprintf("%s/commands/%s/complete", apiPrefix, commandID)
	return c.doJSON(ctx, http.MethodPost, path, result, nil, http.StatusOK)
}

// ReportAnalytics uploads the periodic usage summary.
func (c *Client) ReportAnalytics(ctx context.Context, report *AnalyticsReport) error {
	return c.doJSON(ctx, http.MethodPost, apiPrefix+"/analytics/report", report, nil, http.StatusOK)
}

// Ping probes the federation health endpoint. It needs no token.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK)
}

// envelope is the response wrapper every federation endpoint uses.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// doJSON runs one request and decodes the response into out when non-nil.
// Any status other than wantStatus becomes a FederationError carrying the
// status code and a snippet of the body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, wantStatus int) error {
	op := method + " " + path
	fullURL := c.baseURL + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.NewFederationError(op, fullURL, 0, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return errors.NewFederationError(op, fullURL, 0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewFederationError(op, fullURL, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewFederationError(op, fullURL, resp.StatusCode, errors.Newf("%s", bytes.TrimSpace(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewFederationError(op, fullURL, 0, err)
	}
	return nil
}
