// Package apiclient talks to a running walletd over its HTTP and websocket
// surface. The status command and cmd/watch use it.
package apiclient

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

	"github.com/gorilla/websocket"

	"walletd/internal/model"
	"walletd/internal/ws"
)

// Session is the payload of GET /api/session and of every session_changed event.
type Session struct {
	model.SessionState
	ShortAddress string `json:"shortAddress,omitempty"`
}

// Signature is the payload of POST /api/session/sign.
type Signature struct {
	Address   string `json:"address"`
	ChainID   string `json:"chainId"`
	Signature string `json:"signature"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

// APIError is a non-success envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("walletd: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("walletd: %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connect runs the connect flow on the server and returns the resulting session.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/session/connect", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Sign(ctx context.Context, message string) (*Signature, error) {
	var sig Signature
	if err := c.do(ctx, http.MethodPost, "/api/session/sign", map[string]string{"message": message}, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var res apiResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("decode %s %s: %w (body %q)", method, path, err, string(raw))
	}
	if !res.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: res.Message}
		if res.Error != nil {
			apiErr.Code = res.Error.Code
		}
		return apiErr
	}
	if out == nil || len(res.Data) == 0 {
		return nil
	}
	return json.Unmarshal(res.Data, out)
}

// Watch follows the /ws stream and calls fn for each session_changed event
// until ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(Session)) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := c.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var evt struct {
			Event string  `json:"event"`
			Data  Session `json:"data"`
		}
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed the stream")
			}
			return err
		}
		if evt.Event == ws.EventSessionChanged {
			fn(evt.Data)
		}
	}
}
