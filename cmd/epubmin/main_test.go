package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/woozymasta/pathrules"

	"github.com/wudi/epubmin/minify"
)

func TestParseArgsInterleaved(t *testing.T) {
	opts, err := parseArgs([]string{"-f", "in.epub", "--xhtml", "out.epub", "-v", "75", "--keep", "META-INF/**", "--keep", "!META-INF/x.xhtml"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.in != "in.epub" || opts.out != "out.epub" {
		t.Errorf("paths = %q %q", opts.in, opts.out)
	}
	if !opts.cfg.Fonts || !opts.cfg.XHTML || opts.cfg.Images || !opts.verbose {
		t.Errorf("flags = %+v verbose=%v", opts.cfg, opts.verbose)
	}
	if opts.cfg.JPEGQuality != 75 {
		t.Errorf("quality = %d, want 75", opts.cfg.JPEGQuality)
	}
	want := []pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "META-INF/**"},
		{Action: pathrules.ActionExclude, Pattern: "META-INF/x.xhtml"},
	}
	if len(opts.cfg.Preserve) != len(want) {
		t.Fatalf("preserve = %+v", opts.cfg.Preserve)
	}
	for i, r := range opts.cfg.Preserve {
		if r.Action != want[i].Action || r.Pattern != want[i].Pattern {
			t.Errorf("rule %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestParseArgsDefaults(t *testing.T) {
	opts, err := parseArgs([]string{"a.epub", "b.epub"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	def := minify.DefaultConfig()
	if opts.cfg.JPEGQuality != def.JPEGQuality || !opts.cfg.KeepMetadata || opts.cfg.CompressionLevel != def.CompressionLevel {
		t.Errorf("cfg = %+v", opts.cfg)
	}

	opts, err = parseArgs([]string{"--strip-metadata", "--images", "--max-image-dim", "800", "a.epub", "b.epub"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.cfg.KeepMetadata || !opts.cfg.Images || opts.cfg.MaxImageDimension != 800 {
		t.Errorf("cfg = %+v", opts.cfg)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := map[string][]string{
		"no args":       nil,
		"one path":      {"a.epub"},
		"too many":      {"a", "b", "50", "extra"},
		"bad quality":   {"a", "b", "high"},
		"unknown flag":  {"--bogus", "a", "b"},
		"empty pattern": {"--keep", "", "a", "b"},
	}
	for name, args := range tests {
		if _, err := parseArgs(args, io.Discard); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func writeEPUB(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.epub")
	writeEPUB(t, in, map[string]string{"ch.xhtml": "  x  \n"})

	var stderr bytes.Buffer
	out := filepath.Join(dir, "out.epub")
	if code := run(context.Background(), []string{"-x", "-v", in, out}, io.Discard, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "minimized archive") {
		t.Errorf("summary not logged: %s", stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"quality zero", []string{in, filepath.Join(dir, "q0.epub"), "0"}, 2},
		{"quality hundred", []string{in, filepath.Join(dir, "q100.epub"), "100"}, 2},
		{"usage", []string{in}, 2},
		{"same path", []string{in, in}, 1},
		{"missing input", []string{filepath.Join(dir, "none.epub"), filepath.Join(dir, "x.epub")}, 1},
		{"help", []string{"-h"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := run(context.Background(), tt.args, io.Discard, io.Discard); code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(dir, "q0.epub")); !errors.Is(err, os.ErrNotExist) {
		t.Error("output created despite invalid quality")
	}
}

func TestParseArgsCombinedShortFlags(t *testing.T) {
	opts, err := parseArgs([]string{"-fix", "in.epub", "-v", "out.epub"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opts.cfg.Fonts || !opts.cfg.Images || !opts.cfg.XHTML || !opts.verbose {
		t.Errorf("cfg = %+v verbose=%v", opts.cfg, opts.verbose)
	}
	if opts.in != "in.epub" || opts.out != "out.epub" {
		t.Errorf("paths = %q %q", opts.in, opts.out)
	}
}

func TestExpandShortFlags(t *testing.T) {
	tests := []struct {
		in, want []string
	}{
		{[]string{"-fx", "a"}, []string{"-f", "-x", "a"}},
		{[]string{"-f", "--xhtml"}, []string{"-f", "--xhtml"}},
		{[]string{"-level", "5"}, []string{"-level", "5"}},
		{[]string{"--", "-fx"}, []string{"--", "-fx"}},
		{[]string{"-fz"}, []string{"-fz"}},
	}
	for _, tt := range tests {
		if got := expandShortFlags(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("expandShortFlags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"-V"}, {"-fV"}} {
		var stdout bytes.Buffer
		if code := run(context.Background(), args, &stdout, io.Discard); code != 0 {
			t.Errorf("%q: exit code = %d", args, code)
		}
		if got := stdout.String(); got != "epubmin "+version+"\n" {
			t.Errorf("%q: stdout = %q", args, got)
		}
	}
}
