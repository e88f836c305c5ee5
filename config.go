package oraexec

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultMaxRows          = 10000
	DefaultStatementTimeout = 120 * time.Second
	DefaultPingTimeout      = 10 * time.Second
)

// Config tunes the limits applied by a Runner
type Config struct {
	MaxOutputSize    int                      `mapstructure:"maxOutputSize"`
	CursorPageSize   int                      `mapstructure:"cursorPageSize"`
	MaxRows          int                      `mapstructure:"maxRows"`
	StatementTimeout time.Duration            `mapstructure:"statementTimeout"`
	Connection       *ConnectionConfiguration `mapstructure:"connection"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		MaxOutputSize:    DefaultMaxOutputSize,
		CursorPageSize:   DefaultCursorPageSize,
		MaxRows:          DefaultMaxRows,
		StatementTimeout: DefaultStatementTimeout,
	}
}

// ConfigFromMap decodes settings supplied by the host on top of the defaults,
// durations can be given as text ("30s") or nanoseconds
func ConfigFromMap(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, err
	}
	if cfg.Connection != nil && !cfg.Connection.ConfigurationSet {
		cfg.Connection.ConfigurationSet = true
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxOutputSize <= 0 {
		c.MaxOutputSize = d.MaxOutputSize
	}
	if c.CursorPageSize <= 0 {
		c.CursorPageSize = d.CursorPageSize
	}
	if c.MaxRows <= 0 {
		c.MaxRows = d.MaxRows
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = d.StatementTimeout
	}
	return c
}
