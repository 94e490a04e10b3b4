package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/woozymasta/pathrules"

	"github.com/wudi/epubmin/minify"
	"github.com/wudi/epubmin/observability"
)

const version = "0.1.0"

// shortBoolFlags are the single-letter flags that may be combined, as in -fix.
const shortBoolFlags = "vfixV"

type options struct {
	in, out     string
	verbose     bool
	showVersion bool
	cfg         minify.Config
}

// keepRules collects --keep patterns. A leading '!' re-includes paths a
// previous pattern preserved.
type keepRules []pathrules.Rule

func (k *keepRules) String() string {
	parts := make([]string, len(*k))
	for i, r := range *k {
		parts[i] = r.Pattern
	}
	return strings.Join(parts, ",")
}

func (k *keepRules) Set(v string) error {
	action := pathrules.ActionInclude
	if rest, ok := strings.CutPrefix(v, "!"); ok {
		action, v = pathrules.ActionExclude, rest
	}
	if strings.TrimSpace(v) == "" {
		return errors.New("empty pattern")
	}
	*k = append(*k, pathrules.Rule{Action: action, Pattern: v})
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "epubmin: %v\n", err)
		return 2
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "epubmin %s\n", version)
		return 0
	}

	p, err := minify.New(opts.cfg)
	if err != nil {
		fmt.Fprintf(stderr, "epubmin: %v\n", err)
		return 2
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	p.WithLogger(observability.NewSlogLogger(logger).With(observability.String("input", opts.in)))

	if _, err := p.MinimizeFile(ctx, opts.in, opts.out); err != nil {
		fmt.Fprintf(stderr, "epubmin: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{cfg: minify.DefaultConfig()}
	cfg := &opts.cfg

	fs := flag.NewFlagSet("epubmin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: epubmin [flags] <in.epub> <out.epub> [quality]\n")
		fmt.Fprintf(fs.Output(), "Short flags may be combined, as in -fix.\n")
		fs.PrintDefaults()
	}

	boolFlag := func(p *bool, long, short, usage string) {
		fs.BoolVar(p, long, false, usage)
		fs.BoolVar(p, short, false, "shorthand for --"+long)
	}
	boolFlag(&opts.verbose, "verbose", "v", "Log every entry")
	boolFlag(&opts.showVersion, "version", "V", "Print the version and exit")
	boolFlag(&cfg.Fonts, "fonts", "f", "Subset .otf fonts to the characters used by .xhtml entries")
	boolFlag(&cfg.Images, "images", "i", "Recompress .jpg images")
	boolFlag(&cfg.XHTML, "xhtml", "x", "Trim whitespace around every line of .xhtml entries")

	stripMetadata := fs.Bool("strip-metadata", false, "Drop EXIF, ICC and comment segments from recompressed images")
	var keep keepRules
	fs.Var(&keep, "keep", "Copy entries matching `PATTERN` verbatim (repeatable, '!' negates)")
	fs.IntVar(&cfg.MaxImageDimension, "max-image-dim", 0, "Downscale images larger than `N` pixels on either side (0 disables)")
	fs.IntVar(&cfg.CompressionLevel, "level", cfg.CompressionLevel, "Deflate `level` for rewritten entries")
	fs.Int64Var(&cfg.MaxEntrySize, "max-entry-size", cfg.MaxEntrySize, "Refuse entries larger than `BYTES` when transforming")

	// Flags may appear between positionals.
	args = expandShortFlags(args)
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return options{}, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	if opts.showVersion {
		return opts, nil
	}
	if len(positional) < 2 || len(positional) > 3 {
		fs.Usage()
		return options{}, fmt.Errorf("expected input, output and optional quality, got %d arguments", len(positional))
	}
	opts.in, opts.out = positional[0], positional[1]
	if len(positional) == 3 {
		q, err := strconv.Atoi(positional[2])
		if err != nil {
			return options{}, fmt.Errorf("quality %q is not an integer", positional[2])
		}
		cfg.JPEGQuality = q
	}
	cfg.KeepMetadata = !*stripMetadata
	cfg.Preserve = keep
	return opts, nil
}

// expandShortFlags splits combined single-letter flags ("-fx") into
// separate ones. Arguments after "--" are left alone.
func expandShortFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && strings.Trim(arg[1:], shortBoolFlags) == "" {
			for _, c := range arg[1:] {
				out = append(out, "-"+string(c))
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
