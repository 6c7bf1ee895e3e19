package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrUnknownKind    = errors.New("source: unknown kind")
	ErrMissingCommand = errors.New("source: command is required")
	ErrMissingPath    = errors.New("source: path is required")
)

const (
	KindExec = "exec"
	KindSSH  = "ssh"
	KindFile = "file"
)

// Source opens a byte stream carrying chunked messages. Every Open call
// starts a fresh stream; the caller closes it.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Spec is the transport-neutral description of one source.
type Spec struct {
	Name    string
	Kind    string
	Command string
	Args    []string
	Path    string

	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

// FromSpec builds the Source described by spec.
func FromSpec(spec Spec) (Source, error) {
	name := strings.TrimSpace(spec.Name)
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case KindExec:
		if strings.TrimSpace(spec.Command) == "" {
			return nil, fmt.Errorf("source %q: %w", name, ErrMissingCommand)
		}
		return ExecSource{Label: name, Command: spec.Command, Args: spec.Args}, nil
	case KindSSH:
		if strings.TrimSpace(spec.Command) == "" {
			return nil, fmt.Errorf("source %q: %w", name, ErrMissingCommand)
		}
		return SSHSource{
			Label:                       name,
			Command:                     spec.Command,
			Args:                        spec.Args,
			Host:                        spec.Host,
			Port:                        spec.Port,
			User:                        spec.User,
			KeyPath:                     spec.KeyPath,
			Passphrase:                  spec.Passphrase,
			KnownHostsPath:              spec.KnownHostsPath,
			InsecureSkipHostKeyChecking: spec.InsecureSkipHostKeyChecking,
			Timeout:                     spec.Timeout,
		}, nil
	case KindFile:
		if strings.TrimSpace(spec.Path) == "" {
			return nil, fmt.Errorf("source %q: %w", name, ErrMissingPath)
		}
		return FileSource{Label: name, Path: spec.Path}, nil
	default:
		return nil, fmt.Errorf("source %q kind %q: %w", name, spec.Kind, ErrUnknownKind)
	}
}

// ExecSource streams the stdout of a local command, e.g. a serial reader.
type ExecSource struct {
	Label   string
	Command string
	Args    []string
}

func (s ExecSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "exec:" + s.Command
}

func (s ExecSource) Open(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &commandStream{ReadCloser: stdout, wait: cmd.Wait}, nil
}

// FileSource streams a file once.
type FileSource struct {
	Label string
	Path  string
}

func (s FileSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "file:" + s.Path
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// commandStream closes the pipe before reaping the command.
type commandStream struct {
	io.ReadCloser
	wait func() error
}

func (c *commandStream) Close() error {
	_ = c.ReadCloser.Close()
	return c.wait()
}
