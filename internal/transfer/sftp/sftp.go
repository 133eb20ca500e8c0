// Package sftp is sf_sftp's transfer client: key- or
// password-authenticated SFTP via golang.org/x/crypto/ssh and
// github.com/pkg/sftp, grounded on the auth-method construction order
// of the teacher's SFTP backend (key file, then password) but without
// its ssh-agent reuse and external-binary fallback, which exist there
// to amortize one ssh connection across many rclone operations — a
// concern a one-shot worker process doesn't have.
package sftp

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Options configures the remote host a worker connects to.
type Options struct {
	Host    string
	Port    string
	User    string
	Pass    string
	KeyFile string
	Timeout time.Duration
}

func (o Options) addr() string {
	port := o.Port
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(o.Host, port)
}

func (o Options) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if o.KeyFile != "" {
		key, err := os.ReadFile(o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if o.Pass != "" {
		methods = append(methods, ssh.Password(o.Pass))
	}
	return methods, nil
}

func dial(o Options) (*ssh.Client, *sftp.Client, error) {
	auth, err := o.authMethods()
	if err != nil {
		return nil, nil, err
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config := &ssh.ClientConfig{
		User:            o.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	conn, err := ssh.Dial("tcp", o.addr(), config)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp: dial %s: %w", o.addr(), err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sftp: new client: %w", err)
	}
	return conn, client, nil
}

// Put uploads localPath to remotePath, creating parent directories as
// needed.
func Put(o Options, remotePath, localPath string) error {
	conn, client, err := dial(o)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		_ = client.MkdirAll(dir)
	}

	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer in.Close()

	out, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("sftp: copy to remote: %w", err)
	}
	return nil
}

// Get downloads remotePath to localPath (the pull-side retrieve
// counterpart; no gf_sftp binary in this repository calls it).
func Get(o Options, remotePath, localPath string) error {
	conn, client, err := dial(o)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	in, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: open remote file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("sftp: create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("sftp: copy from remote: %w", err)
	}
	return nil
}
