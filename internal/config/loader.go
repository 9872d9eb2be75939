package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// MaxFileSize is the largest config file Load accepts.
const MaxFileSize = 1 << 20

// ErrUnsafeFile is returned for config files that are too large, not
// regular, or writable by group or others.
var ErrUnsafeFile = errors.New("unsafe config file")

// sections are the top-level keys environment variables may target.
var sections = map[string]struct{}{
	"agent": {}, "llm": {}, "server": {}, "nats": {}, "temporal": {},
	"findings": {}, "secrets": {}, "logging": {}, "telemetry": {},
}

// DefaultPath is ~/.config/deepagent/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "deepagent", "config.yaml"), nil
}

// Load builds a Config from defaults, then the YAML file at path, then the
// environment. An empty path loads DefaultPath when that file exists.
//
// Environment variables are matched by splitting on the first underscore:
//
//	AGENT_MAX_SUB_AGENTS  -> agent.max_sub_agents
//	LLM_API_KEY           -> llm.api_key
//	NATS_SUBJECT_PREFIX   -> nats.subject_prefix
//
// Variables whose first segment is not a config section are ignored.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	optional := path == ""
	if optional {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name, or to "" to skip
// the variable.
func envKey(name string) string {
	section, field, ok := strings.Cut(strings.ToLower(name), "_")
	if !ok || field == "" {
		return ""
	}
	if _, known := sections[section]; !known {
		return ""
	}
	return section + "." + field
}

// readFile opens path once and checks the open descriptor before reading.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if err := checkFile(info); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return io.ReadAll(io.LimitReader(f, MaxFileSize))
}

func checkFile(info fs.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: not a regular file", ErrUnsafeFile)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrUnsafeFile, info.Size(), MaxFileSize)
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return fmt.Errorf("%w: mode %04o is group or world writable", ErrUnsafeFile, perm)
	}
	return nil
}
