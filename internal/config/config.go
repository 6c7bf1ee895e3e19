package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/sxmlstream/internal/assembler"
	"github.com/danmuck/sxmlstream/internal/ingest"
	"github.com/danmuck/sxmlstream/internal/source"
	"github.com/danmuck/sxmlstream/internal/xmltext"
)

var (
	ErrMissingName     = errors.New("config: name is required")
	ErrMissingStartTag = errors.New("config: start_tag is required")
	ErrNoInput         = errors.New("config: listen_addr or at least one source is required")
)

// Config is a loaded runtime file: the ingest service plus its sources.
type Config struct {
	Ingest  ingest.Config
	Sources []SourceEntry
}

type fileConfig struct {
	Name          string        `toml:"name"`
	ListenAddr    string        `toml:"listen_addr"`
	AdminAddr     string        `toml:"admin_addr"`
	CorsOrigins   []string      `toml:"cors_origins"`
	AdminToken    string        `toml:"admin_token"`
	StartTag      string        `toml:"start_tag"`
	NotifyMode    string        `toml:"notify_mode"`
	MaxBufferSize int           `toml:"max_buffer_size"`
	ChunkSize     int           `toml:"chunk_size"`
	ReadTimeout   string        `toml:"read_timeout"`
	ExtractTags   []string      `toml:"extract_tags"`
	DecodeValues  bool          `toml:"decode_values"`
	InboxLimit    int           `toml:"inbox_limit"`
	Backoff       backoffConfig `toml:"backoff"`
	Sources       []SourceEntry `toml:"sources"`
}

type backoffConfig struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

// SourceEntry is one [[sources]] table.
type SourceEntry struct {
	Name                        string   `toml:"name"`
	Kind                        string   `toml:"kind"`
	Command                     string   `toml:"command"`
	Args                        []string `toml:"args"`
	Path                        string   `toml:"path"`
	Host                        string   `toml:"host"`
	Port                        string   `toml:"port"`
	User                        string   `toml:"user"`
	KeyPath                     string   `toml:"key_path"`
	KnownHostsPath              string   `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool     `toml:"insecure_skip_host_key_checking"`
	Timeout                     string   `toml:"timeout"`
	// Restart reopens the source whenever its stream ends. Unset means
	// true for exec and ssh sources and false for files.
	Restart *bool `toml:"restart"`
}

// Load reads and validates a TOML file on top of ingest defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := apply(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := ingest.DefaultConfig()

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("start_tag") {
		cfg.Assembler.StartTag = strings.TrimSpace(raw.StartTag)
	}
	if meta.IsDefined("notify_mode") {
		mode, err := assembler.ParseNotificationMode(raw.NotifyMode)
		if err != nil {
			return Config{}, err
		}
		cfg.Assembler.Mode = mode
	}
	if meta.IsDefined("max_buffer_size") {
		cfg.Assembler.MaxBufferSize = raw.MaxBufferSize
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("extract_tags") {
		cfg.ExtractTags = normalizeList(raw.ExtractTags)
	}
	if meta.IsDefined("decode_values") {
		cfg.DecodeValues = raw.DecodeValues
	}
	if meta.IsDefined("inbox_limit") {
		cfg.InboxLimit = raw.InboxLimit
	}
	if meta.IsDefined("backoff", "initial") {
		d, err := parseDuration("backoff.initial", raw.Backoff.Initial)
		if err != nil {
			return Config{}, err
		}
		cfg.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "max") {
		d, err := parseDuration("backoff.max", raw.Backoff.Max)
		if err != nil {
			return Config{}, err
		}
		cfg.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}

	out := Config{Ingest: cfg, Sources: raw.Sources}
	if err := Validate(out); err != nil {
		return Config{}, err
	}
	return out, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Ingest.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(xmltext.CleanTagName(cfg.Ingest.Assembler.StartTag)) == "" {
		return ErrMissingStartTag
	}
	if cfg.Ingest.ChunkSize < 0 {
		return fmt.Errorf("config: chunk_size must not be negative")
	}
	if cfg.Ingest.Assembler.MaxBufferSize < 0 {
		return fmt.Errorf("config: max_buffer_size must not be negative")
	}
	if cfg.Ingest.InboxLimit < 0 {
		return fmt.Errorf("config: inbox_limit must not be negative")
	}
	if strings.TrimSpace(cfg.Ingest.ListenAddr) == "" && len(cfg.Sources) == 0 {
		return ErrNoInput
	}
	seen := make(map[string]struct{}, len(cfg.Sources))
	for i, entry := range cfg.Sources {
		if err := ValidateSourceEntry(entry); err != nil {
			return fmt.Errorf("sources[%d] invalid: %w", i, err)
		}
		if name := strings.TrimSpace(entry.Name); name != "" {
			if _, dup := seen[name]; dup {
				return fmt.Errorf("sources[%d] invalid: duplicate name %q", i, name)
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}

func ValidateSourceEntry(entry SourceEntry) error {
	if _, err := parseDuration("timeout", entry.Timeout); err != nil {
		return err
	}
	if _, err := source.FromSpec(entry.Spec()); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(entry.Kind), source.KindSSH) {
		if strings.TrimSpace(entry.Host) == "" {
			return fmt.Errorf("host is required for ssh sources")
		}
		if strings.TrimSpace(entry.User) == "" {
			return fmt.Errorf("user is required for ssh sources")
		}
		if strings.TrimSpace(entry.KeyPath) == "" {
			return fmt.Errorf("key_path is required for ssh sources")
		}
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration %s", key, raw)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
