package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"
)

// ErrBackpressure reports that the service refused events because its
// queue was full.
var ErrBackpressure = errors.New("service applied backpressure")

// HTTPClient wraps http.Client with JSON helpers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Get performs a GET request against path.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// GetJSON decodes a 200 response from path into v.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// Submitter sends one batch and returns the service's acknowledgement.
type Submitter interface {
	Submit(ctx context.Context, batch []Event) (AckResponse, error)
	Close() error
}

type httpSubmitter struct {
	client *HTTPClient
}

func (s *httpSubmitter) Submit(ctx context.Context, batch []Event) (AckResponse, error) {
	var ack AckResponse
	resp, err := s.client.Post(ctx, "/events", batch)
	if err != nil {
		return ack, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ack, err
	}

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		if err := json.Unmarshal(body, &ack); err != nil {
			return ack, fmt.Errorf("decode ack: %w", err)
		}
		return ack, nil
	case http.StatusTooManyRequests:
		return ack, ErrBackpressure
	}
	return ack, fmt.Errorf("POST /events: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

func (s *httpSubmitter) Close() error { return nil }

// wsSubmitter sends batches as frames on one websocket.
type wsSubmitter struct {
	conn *websocket.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func dialStream(baseURL string) (*wsSubmitter, error) {
	base := strings.TrimSuffix(baseURL, "/")
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/events/stream"
	conn, err := websocket.Dial(wsURL, "", base)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return &wsSubmitter{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}, nil
}

func (s *wsSubmitter) Submit(ctx context.Context, batch []Event) (AckResponse, error) {
	var ack AckResponse
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(dl)
	}
	if err := s.enc.Encode(batch); err != nil {
		return ack, fmt.Errorf("send frame: %w", err)
	}
	if err := s.dec.Decode(&ack); err != nil {
		return ack, fmt.Errorf("read ack: %w", err)
	}
	if ack.Error != nil {
		if ack.Error.Code == "backpressure" {
			return ack, ErrBackpressure
		}
		return ack, fmt.Errorf("stream rejected frame: %s: %s", ack.Error.Code, ack.Error.Message)
	}
	return ack, nil
}

func (s *wsSubmitter) Close() error { return s.conn.Close() }
