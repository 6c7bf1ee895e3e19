package config

import (
	"strings"
	"time"

	"github.com/danmuck/sxmlstream/internal/ingest"
	"github.com/danmuck/sxmlstream/internal/source"
)

// Spec maps the entry onto a source spec. Timeout is assumed validated.
func (e SourceEntry) Spec() source.Spec {
	timeout, _ := time.ParseDuration(strings.TrimSpace(e.Timeout))
	return source.Spec{
		Name:                        strings.TrimSpace(e.Name),
		Kind:                        e.Kind,
		Command:                     e.Command,
		Args:                        e.Args,
		Path:                        e.Path,
		Host:                        e.Host,
		Port:                        e.Port,
		User:                        e.User,
		KeyPath:                     e.KeyPath,
		KnownHostsPath:              e.KnownHostsPath,
		InsecureSkipHostKeyChecking: e.InsecureSkipHostKeyChecking,
		Timeout:                     timeout,
	}
}

func (e SourceEntry) ShouldRestart() bool {
	if e.Restart != nil {
		return *e.Restart
	}
	return !strings.EqualFold(strings.TrimSpace(e.Kind), source.KindFile)
}

// Bindings builds one ingest binding per entry, in file order.
func Bindings(entries []SourceEntry) ([]ingest.Binding, error) {
	out := make([]ingest.Binding, 0, len(entries))
	for _, entry := range entries {
		src, err := source.FromSpec(entry.Spec())
		if err != nil {
			return nil, err
		}
		out = append(out, ingest.Binding{Source: src, Restart: entry.ShouldRestart()})
	}
	return out, nil
}
