package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sensorgrid/devicehub-backend/pkg/config"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var errGatewayURLRequired = errors.New("sms gateway url is required")

// Message is one outbound text.
type Message struct {
	To   string
	Body string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client talks to the HTTP query-string SMS gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secret     string
	sender     string
	templateID string
	route      string
	msgType    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a gateway client from config.
func NewClient(cfg config.SMSConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.GatewayURL)
	if baseURL == "" {
		return nil, errGatewayURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secret:     cfg.Secret,
		sender:     cfg.Sender,
		templateID: cfg.TemplateID,
		route:      cfg.Route,
		msgType:    cfg.MsgType,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Send issues the GET request the gateway expects. Any non-200 status is a failure.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sms client not configured")
	}
	if strings.TrimSpace(msg.To) == "" || strings.TrimSpace(msg.Body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sms receiver and body are required")
	}

	params := url.Values{}
	params.Set("secret", c.secret)
	params.Set("sender", c.sender)
	params.Set("tempid", c.templateID)
	params.Set("receiver", msg.To)
	params.Set("route", c.route)
	params.Set("msgtype", c.msgType)
	params.Set("sms", msg.Body)

	target := c.baseURL
	if strings.Contains(target, "?") {
		target += "&" + params.Encode()
	} else {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build sms request")
	}
	req.Header.Set("User-Agent", "devicehub-sms/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sms request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "sms gateway rejected message")
	}
	return nil
}

// FormatOTP renders the login message from the configured template.
func FormatOTP(template, code string) string {
	if !strings.Contains(template, "%s") {
		return fmt.Sprintf("%s %s", strings.TrimSpace(template), code)
	}
	return fmt.Sprintf(template, code)
}
