package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file. kind is "listen" for a TCP ingest
// server or "serial" for a device read through a local command.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "listen":
		return listenTemplate, nil
	case "serial":
		return serialTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const listenTemplate = `name = "sxmlctl"
listen_addr = ":7400"
admin_addr = "127.0.0.1:7401"
cors_origins = ["http://localhost:3000"]
start_tag = "TestPlan"
notify_mode = "notify"
max_buffer_size = 1048576
chunk_size = 4096
read_timeout = "0s"
extract_tags = ["TestData"]
decode_values = true
inbox_limit = 1024
`

const serialTemplate = `name = "sxmlctl"
admin_addr = "127.0.0.1:7401"
start_tag = "TestPlan"
notify_mode = "notify"
max_buffer_size = 1048576
extract_tags = ["TestData"]
decode_values = true

[backoff]
initial = "250ms"
multiplier = 2.0
max = "30s"
jitter = true

[[sources]]
name = "bench"
kind = "exec"
command = "cat"
args = ["/dev/ttyUSB0"]
restart = true
`
