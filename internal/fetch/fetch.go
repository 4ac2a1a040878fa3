// Package fetch retrieves remote resources over HTTP. Every failure to obtain
// the payload is reported as a *FetchError; interpreting the payload is left
// to the caller.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"code.cloudfoundry.org/tlsconfig"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 64 * 1024 * 1024
)

var ErrTooLarge = errors.New("response exceeds size limit")

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// FetchError describes a remote resource that could not be retrieved.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Options struct {
	Timeout  time.Duration // default DefaultTimeout
	MaxBytes int64         // default DefaultMaxBytes
	CAFile   string        // optional PEM file; replaces the system roots
}

type Client struct {
	HTTPClient HTTPClient
	MaxBytes   int64
}

// New builds a Client backed by net/http. When opt.CAFile is set the client
// trusts only that authority.
func New(opt Options) (*Client, error) {
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opt.CAFile != "" {
		tlsConfig, err := tlsconfig.Build().Client(tlsconfig.WithAuthorityFromFile(opt.CAFile))
		if err != nil {
			return nil, fmt.Errorf("load ca file %s: %w", opt.CAFile, err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout, Transport: transport},
		MaxBytes:   maxBytes,
	}, nil
}

// Bytes returns the body of a GET request to url.
func (c *Client) Bytes(ctx context.Context, url string) ([]byte, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, c.limit()+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > c.limit() {
		return nil, &FetchError{URL: url, Err: ErrTooLarge}
	}
	return data, nil
}

// Download streams the body of a GET request to url into w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(w, io.LimitReader(body, c.limit()+1))
	if err != nil {
		return n, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if n > c.limit() {
		return n, &FetchError{URL: url, Err: ErrTooLarge}
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("http client: %w", err)}
	}
	slog.Debug("fetch_response", "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("bad response: %s", snippet)}
	}
	return resp.Body, nil
}

func (c *Client) limit() int64 {
	if c.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return c.MaxBytes
}
