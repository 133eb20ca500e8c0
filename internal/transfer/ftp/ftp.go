// Package ftp is sf_ftp/gf_ftp's transfer client: a thin, worker-scoped
// wrapper around github.com/jlaffaye/ftp, grounded on the dial/TLS/retry
// shape of the teacher's FTP backend but stripped of the generic
// multi-remote fs.Fs abstraction a one-shot worker process never needs
// (§6, "Worker invocation").
package ftp

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// Options configures the remote host a worker connects to. Field names
// mirror the teacher's backend Options struct.
type Options struct {
	Host              string
	Port              string
	User              string
	Pass              string
	TLS               bool
	ExplicitTLS       bool
	SkipVerifyTLSCert bool
	DialTimeout       time.Duration
	Retries           int
}

func (o Options) addr() string {
	port := o.Port
	if port == "" {
		port = "21"
	}
	return net.JoinHostPort(o.Host, port)
}

func (o Options) tlsConfig() *tls.Config {
	if !o.TLS && !o.ExplicitTLS {
		return nil
	}
	return &tls.Config{
		ServerName:         o.Host,
		InsecureSkipVerify: o.SkipVerifyTLSCert,
	}
}

// dial opens and authenticates a control connection, retrying transient
// failures a bounded number of times (the teacher's lib/pacer is a
// generic rate-limited retry wrapper over the whole fs.Fs surface;
// a one-shot worker only ever makes this single call, so a small
// linear backoff loop grounded on the same retry shape replaces it).
func dial(o Options) (*ftp.ServerConn, error) {
	opts := []ftp.DialOption{ftp.DialWithTimeout(dialTimeout(o))}
	if tlsConfig := o.tlsConfig(); tlsConfig != nil {
		if o.TLS {
			opts = append(opts, ftp.DialWithTLS(tlsConfig))
		} else {
			opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}

	var lastErr error
	attempts := o.Retries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		c, err := ftp.Dial(o.addr(), opts...)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.Login(o.User, o.Pass); err != nil {
			_ = c.Quit()
			lastErr = err
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("ftp: connect to %s: %w", o.addr(), lastErr)
}

func dialTimeout(o Options) time.Duration {
	if o.DialTimeout > 0 {
		return o.DialTimeout
	}
	return 30 * time.Second
}

// Put uploads localPath to remotePath, creating parent directories as
// needed.
func Put(o Options, remotePath, localPath string) error {
	c, err := dial(o)
	if err != nil {
		return err
	}
	defer c.Quit()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		_ = c.MakeDir(dir) // best effort; already-exists is not fatal
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("ftp: open local file: %w", err)
	}
	defer f.Close()

	if err := c.Stor(remotePath, f); err != nil {
		return fmt.Errorf("ftp: STOR %s: %w", remotePath, err)
	}
	return nil
}

// List returns the plain file names (not full paths) in remoteDir,
// used by gf_ftp to discover what a retrieve pass should pull.
func List(o Options, remoteDir string) ([]string, error) {
	c, err := dial(o)
	if err != nil {
		return nil, err
	}
	defer c.Quit()

	names, err := c.NameList(remoteDir)
	if err != nil {
		return nil, fmt.Errorf("ftp: list %s: %w", remoteDir, err)
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = path.Base(n)
	}
	return out, nil
}

// Get downloads remotePath to localPath (the pull-side retrieve
// counterpart, used by gf_ftp).
func Get(o Options, remotePath, localPath string) error {
	c, err := dial(o)
	if err != nil {
		return err
	}
	defer c.Quit()

	resp, err := c.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("ftp: RETR %s: %w", remotePath, err)
	}
	defer resp.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("ftp: create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		return fmt.Errorf("ftp: copy from remote: %w", err)
	}
	return nil
}
