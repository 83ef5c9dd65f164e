package config

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/nczempin/0005_std_lib_http_server/transport"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse("httpserve", nil, io.Discard)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Address != "127.0.0.1:7878" {
		t.Errorf("Expected default address, got %q", cfg.Address)
	}
	if cfg.BaseDir != "pages" {
		t.Errorf("Expected default base dir, got %q", cfg.BaseDir)
	}
	if cfg.Transport != transport.KindTcp {
		t.Errorf("Expected tcp transport, got %q", cfg.Transport)
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 30*time.Second {
		t.Errorf("Unexpected default timeouts %v/%v", cfg.ReadTimeout, cfg.WriteTimeout)
	}
}

func TestParse_Flags(t *testing.T) {
	args := []string{
		"-addr", "0.0.0.0:8080",
		"-root", "/srv/www",
		"-transport", "uring-v2",
		"-read-timeout", "5s",
		"-write-timeout", "0",
	}
	cfg, err := Parse("httpserve", args, io.Discard)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Address != "0.0.0.0:8080" || cfg.BaseDir != "/srv/www" {
		t.Errorf("Unexpected address/base %q/%q", cfg.Address, cfg.BaseDir)
	}
	if cfg.Transport != transport.KindUringV2 {
		t.Errorf("Expected uring-v2, got %q", cfg.Transport)
	}

	opts := cfg.TransportOptions()
	if opts.ReadTimeout != 5*time.Second || opts.WriteTimeout != 0 {
		t.Errorf("Unexpected transport options %+v", opts)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := [][]string{
		{"-transport", "quic"},
		{"-root", ""},
		{"-addr", ""},
		{"-read-timeout", "-1s"},
		{"-unknown"},
		{"extra"},
	}

	for _, args := range cases {
		if _, err := Parse("httpserve", args, io.Discard); err == nil {
			t.Errorf("Parse(%v): expected error", args)
		}
	}
}

func TestParse_Help(t *testing.T) {
	_, err := Parse("httpserve", []string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp, got %v", err)
	}
}

func TestValidate_UnknownTransport(t *testing.T) {
	cfg := Default()
	cfg.Transport = "smoke-signals"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown transport")
	}
}
