package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nczempin/0005_std_lib_http_server/transport"
)

const (
	DefaultAddress      = "127.0.0.1:7878"
	DefaultBaseDir      = "pages"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// Config holds everything the process needs to start serving
type Config struct {
	Address      string
	BaseDir      string
	Transport    transport.Kind
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Address:      DefaultAddress,
		BaseDir:      DefaultBaseDir,
		Transport:    transport.KindTcp,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Parse builds a Config from command-line arguments (without the program
// name). Usage and parse errors are written to output.
func Parse(name string, args []string, output io.Writer) (*Config, error) {
	cfg := Default()
	kind := string(cfg.Transport)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "host:port to listen on")
	fs.StringVar(&cfg.BaseDir, "root", cfg.BaseDir, "directory holding the HTML pages")
	fs.StringVar(&kind, "transport", kind, "connection I/O: tcp, uring or uring-v2")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "per-read deadline, 0 disables")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-write deadline, 0 disables")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	k, err := transport.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	cfg.Transport = k

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that can never work
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address must not be empty")
	}
	if c.BaseDir == "" {
		return errors.New("base directory must not be empty")
	}
	if _, err := transport.ParseKind(string(c.Transport)); err != nil {
		return err
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// TransportOptions returns the per-connection options for the listener
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
