package config

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

var _ io.Reader = (*Config)(nil)
var _ io.ReaderFrom = (*Config)(nil)
var _ yaml.BytesUnmarshaler = (*Config)(nil)

func (cfg *Config) Read(
	b []byte,
) (int, error) {
	return len(b), cfg.UnmarshalYAML(b)
}

func (cfg *Config) UnmarshalYAML(b []byte) error {
	err := yaml.Unmarshal(b, (*config)(cfg))
	if err != nil {
		return fmt.Errorf("unable to unserialize data: %w", err)
	}

	if cfg.AuthType == AuthTypeUndefined {
		cfg.AuthType = AuthTypeUser
	}
	if err := cfg.AuthType.Validate(); err != nil {
		return err
	}
	if _, err := cfg.UnauthorizedPolicy(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) ReadFrom(
	r io.Reader,
) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("unable to read: %w", err)
	}

	n, err := cfg.Read(b)
	return int64(n), err
}
