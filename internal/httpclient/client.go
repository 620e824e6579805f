package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	ierr "github.com/platformhq/licensing/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Request is an outbound HTTP request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the decoded result of a successful request
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client sends HTTP requests on behalf of outbound integrations
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type defaultClient struct {
	client *http.Client
}

// NewDefaultClient returns a Client with the default timeout
func NewDefaultClient() Client {
	return NewClientWithTimeout(defaultTimeout)
}

// NewClientWithTimeout returns a Client whose requests abort after the
// given timeout unless the context cancels them first.
func NewClientWithTimeout(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &defaultClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *defaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invalid request for %s", req.URL).
			Mark(ierr.ErrHTTPClient)
	}
	if req.Body != nil {
		httpReq.ContentLength = int64(len(req.Body))
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Request to %s failed", req.URL).
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Reading response from %s failed", req.URL).
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, NewError(resp.StatusCode, respBody)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    headers,
	}, nil
}
