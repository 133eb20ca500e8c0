// Package httpclient is sf_http's transfer client: a plain net/http
// PUT/GET against a custom-built Transport with explicit dial, TLS
// handshake, and idle-connection timeouts, in the same spirit as the
// teacher's fshttp.NewTransport (that package's source wasn't part of
// the retrieved reference set, so the transport here is hand-built
// directly against net/http rather than adapted line-for-line).
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// Options configures the remote endpoint and timeouts.
type Options struct {
	BaseURL     string
	DialTimeout time.Duration
	IdleTimeout time.Duration
}

func (o Options) client() *http.Client {
	dialTimeout := o.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	idleTimeout := o.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   dialTimeout,
		IdleConnTimeout:       idleTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: dialTimeout,
	}
	return &http.Client{Transport: transport}
}

// Put uploads localPath as the body of an HTTP PUT to remotePath
// (resolved against BaseURL).
func Put(ctx context.Context, o Options, remotePath, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("httpclient: open local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("httpclient: stat local file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, o.BaseURL+remotePath, f)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	req.ContentLength = info.Size()

	resp, err := o.client().Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: PUT %s: %w", remotePath, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("httpclient: PUT %s: server returned %s", remotePath, resp.Status)
	}
	return nil
}

// Get downloads remotePath (the pull-side retrieve counterpart, used
// by a hypothetical gf_http) to localPath.
func Get(ctx context.Context, o Options, remotePath, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+remotePath, nil)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}

	resp, err := o.client().Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: GET %s: %w", remotePath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("httpclient: GET %s: server returned %s", remotePath, resp.Status)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("httpclient: create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("httpclient: copy from remote: %w", err)
	}
	return nil
}
