package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = "22"

// SSHSource streams the stdout of a command run on a remote host, such as
// a reader attached to that host's serial port.
type SSHSource struct {
	Label                       string
	Command                     string
	Args                        []string
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	// Timeout bounds the TCP connect and the SSH handshake together.
	Timeout time.Duration
}

func (s SSHSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "ssh:" + s.Host
}

// Open connects, starts the remote command and returns its stdout. ctx
// aborts the dial and handshake and later closes the stream.
func (s SSHSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: new session: %w", s.Name(), err)
	}
	stream := &sshStream{session: session, client: client, done: make(chan struct{})}

	stream.reader, err = session.StdoutPipe()
	if err == nil {
		err = session.Start(s.remoteCommand())
	}
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%s: start %q: %w", s.Name(), s.Command, err)
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.done:
		}
	}()
	return stream, nil
}

type sshStream struct {
	reader  io.Reader
	session *ssh.Session
	client  *ssh.Client
	once    sync.Once
	done    chan struct{}
}

func (s *sshStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *sshStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.session.Close()
		err = s.client.Close()
	})
	return err
}

// dial connects with ctx and runs the handshake on the raw conn, so that a
// peer which accepts TCP but never speaks SSH cannot outlive ctx.
func (s SSHSource) dial(ctx context.Context) (*ssh.Client, error) {
	addr, err := s.addr()
	if err != nil {
		return nil, err
	}
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", s.Name(), addr, err)
	}
	if s.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.Timeout))
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if !stop() {
		// ctx fired mid-handshake and already closed conn
		if err == nil {
			_ = sshConn.Close()
		}
		return nil, fmt.Errorf("%s: handshake %s: %w", s.Name(), addr, ctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: handshake %s: %w", s.Name(), addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// addr resolves Host and Port to host:port. A Host that already carries a
// port is used as is unless Port overrides it.
func (s SSHSource) addr() (string, error) {
	host := strings.TrimSpace(s.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}
	port := strings.TrimSpace(s.Port)
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if port == "" {
			port = p
		}
	}
	if port == "" {
		port = defaultSSHPort
	}
	return net.JoinHostPort(host, port), nil
}

func (s SSHSource) clientConfig() (*ssh.ClientConfig, error) {
	if strings.TrimSpace(s.User) == "" {
		return nil, fmt.Errorf("ssh user is required")
	}
	auth, err := s.publicKeyAuth()
	if err != nil {
		return nil, err
	}
	hostKeys, err := s.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeys,
	}, nil
}

func (s SSHSource) publicKeyAuth() (ssh.AuthMethod, error) {
	if strings.TrimSpace(s.KeyPath) == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}
	pem, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	var signer ssh.Signer
	if len(s.Passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, s.Passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", s.KeyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func (s SSHSource) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.InsecureSkipHostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := strings.TrimSpace(s.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known_hosts_path unset and no home dir: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(path)
}

// remoteCommand renders Command and Args as one POSIX shell line with
// every word single-quoted.
func (s SSHSource) remoteCommand() string {
	words := make([]string, 0, len(s.Args)+1)
	for _, w := range append([]string{s.Command}, s.Args...) {
		words = append(words, "'"+strings.ReplaceAll(w, "'", `'\''`)+"'")
	}
	return strings.Join(words, " ")
}
