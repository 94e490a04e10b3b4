// Package minify shrinks EPUB archives. A run copies every entry of a source
// archive into a destination archive, recompressing JPEG images, trimming
// XHTML markup, and subsetting OpenType fonts to the characters the markup
// actually uses.
//
// Fonts are subset in a second pass: the character set is complete only
// once every markup entry has been scanned, so font entries are deferred
// and appended after all other entries.
package minify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/epubmin/archive"
	"github.com/wudi/epubmin/fonts"
	"github.com/wudi/epubmin/observability"
	"github.com/wudi/epubmin/optimize"
)

// Pipeline runs minimizations with a fixed Config. A Pipeline holds no
// per-run state and may be reused.
type Pipeline struct {
	cfg        Config
	classifier *Classifier
	images     ImageEngine
	fonts      FontEngine
	logger     observability.Logger
	tracer     observability.Tracer
}

// New validates cfg and returns a Pipeline using the default engines.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		images:     optimize.NewJPEGCompressor(),
		fonts:      fonts.NewSubsetter(),
		logger:     observability.NopLogger{},
		tracer:     observability.NopTracer(),
	}, nil
}

func (p *Pipeline) WithLogger(l observability.Logger) *Pipeline {
	if l == nil {
		l = observability.NopLogger{}
	}
	p.logger = l
	return p
}

func (p *Pipeline) WithTracer(t observability.Tracer) *Pipeline {
	if t == nil {
		t = observability.NopTracer()
	}
	p.tracer = t
	return p
}

func (p *Pipeline) WithImageEngine(e ImageEngine) *Pipeline {
	if e != nil {
		p.images = e
	}
	return p
}

func (p *Pipeline) WithFontEngine(e FontEngine) *Pipeline {
	if e != nil {
		p.fonts = e
	}
	return p
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// run is the state of one minimization.
type run struct {
	p        *Pipeline
	src      *archive.Reader
	dst      *archive.Writer
	phases   phaseMachine
	chars    *CharSet
	deferred []int
	report   *Report
}

// Run copies every entry of src into dst and closes dst. Non-font entries
// keep their source order; font entries follow them in their original
// relative order. Any entry failure aborts the run; dst is then left
// unfinished and the caller should discard it.
func (p *Pipeline) Run(ctx context.Context, src *archive.Reader, dst *archive.Writer) (*Report, error) {
	src.SetMaxEntrySize(p.cfg.MaxEntrySize)
	r := &run{p: p, src: src, dst: dst, report: &Report{}}
	if p.cfg.Fonts {
		r.chars = NewCharSet()
	}

	if err := r.scan(ctx); err != nil {
		return nil, err
	}
	if len(r.deferred) > 0 {
		if err := r.subsetFonts(ctx); err != nil {
			return nil, err
		}
	}
	if err := r.finalize(ctx); err != nil {
		return nil, err
	}

	r.report.Phases = r.phases.visited
	p.logger.Info("minimized archive",
		observability.Int("entries", r.report.Entries),
		observability.Int64("bytes_in", r.report.BytesIn),
		observability.Int64("bytes_out", r.report.BytesOut),
		observability.Int("fonts", r.report.Category(CategoryFont).Entries),
		observability.Int("characters", r.report.Characters),
	)
	return r.report, nil
}

func (r *run) scan(ctx context.Context) (err error) {
	if err := r.phases.advance(PhaseScanning); err != nil {
		return err
	}
	_, span := r.p.tracer.StartSpan(ctx, observability.SpanScan)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	for i := 0; i < r.src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := r.src.Entry(i)
		if err != nil {
			return err
		}
		cat := r.p.classifier.Classify(entry.Name, entry.IsFile)
		if cat == CategoryFont {
			r.p.logger.Debug("deferring font", observability.String("entry", entry.Name))
			r.deferred = append(r.deferred, i)
			continue
		}
		if err := r.process(entry, cat); err != nil {
			return err
		}
	}
	span.SetTag("entries", r.src.Len())
	span.SetTag("deferred_fonts", len(r.deferred))
	return nil
}

func (r *run) process(entry archive.Entry, cat Category) error {
	if cat == CategoryPassthrough {
		r.p.logger.Debug("copying entry", observability.String("entry", entry.Name))
		if err := r.dst.Copy(r.src, entry.Index); err != nil {
			return &EntryError{Name: entry.Name, Category: cat, Err: err}
		}
		r.report.add(cat, int64(entry.Size), int64(entry.Size))
		return nil
	}

	data, err := r.src.ReadAll(entry.Index)
	if err != nil {
		return &EntryError{Name: entry.Name, Category: cat, Err: err}
	}

	var out []byte
	switch cat {
	case CategoryImage:
		r.p.logger.Debug("compressing image", observability.String("entry", entry.Name))
		out, err = r.p.compressImage(entry.Name, data)
	case CategoryMarkup:
		r.p.logger.Debug("scanning markup",
			observability.String("entry", entry.Name),
			observability.Bool("trim", r.p.cfg.XHTML),
		)
		out, err = processMarkup(data, r.p.cfg.XHTML, r.chars)
		if err != nil {
			err = &EntryError{Name: entry.Name, Category: cat, Err: err}
		}
	default:
		err = fmt.Errorf("unexpected category %s for %q", cat, entry.Name)
	}
	if err != nil {
		return err
	}
	return r.store(entry, cat, data, out)
}

func (r *run) subsetFonts(ctx context.Context) (err error) {
	if err := r.phases.advance(PhaseSubsettingFonts); err != nil {
		return err
	}
	_, span := r.p.tracer.StartSpan(ctx, observability.SpanSubsetFonts)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	units := r.chars.Units()
	r.report.Characters = len(units)
	span.SetTag("characters", len(units))
	span.SetTag("fonts", len(r.deferred))

	for _, i := range r.deferred {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := r.src.Entry(i)
		if err != nil {
			return err
		}
		r.p.logger.Debug("subsetting font",
			observability.String("entry", entry.Name),
			observability.Int("characters", len(units)),
		)
		data, err := r.src.ReadAll(i)
		if err != nil {
			return &EntryError{Name: entry.Name, Category: CategoryFont, Err: err}
		}
		out, err := r.p.subsetFont(entry.Name, data, units)
		if err != nil {
			return err
		}
		if err := r.store(entry, CategoryFont, data, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) finalize(ctx context.Context) (err error) {
	if err := r.phases.advance(PhaseFinalizing); err != nil {
		return err
	}
	_, span := r.p.tracer.StartSpan(ctx, observability.SpanFinalize)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	if err := r.verifyOutput(); err != nil {
		return err
	}
	if err := r.dst.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return r.phases.advance(PhaseDone)
}

// verifyOutput checks that every source entry was written exactly once.
func (r *run) verifyOutput() error {
	for i := 0; i < r.src.Len(); i++ {
		entry, err := r.src.Entry(i)
		if err != nil {
			return err
		}
		if !r.dst.Written(entry.Name) {
			return fmt.Errorf("%w: %q", ErrEntryMissing, entry.Name)
		}
	}
	if r.dst.Len() != r.src.Len() {
		return fmt.Errorf("%w: wrote %d entries for %d in source", ErrEntryMissing, r.dst.Len(), r.src.Len())
	}
	return nil
}

func (r *run) store(entry archive.Entry, cat Category, in, out []byte) error {
	if err := r.dst.Store(entry.Name, entry.Modified, out); err != nil {
		return &EntryError{Name: entry.Name, Category: cat, Err: err}
	}
	r.report.add(cat, int64(len(in)), int64(len(out)))
	return nil
}

// MinimizeFile minimizes the archive at in and writes the result to out.
// The output file is removed when the run fails.
func (p *Pipeline) MinimizeFile(ctx context.Context, in, out string) (*Report, error) {
	if same, err := samePath(in, out); err != nil {
		return nil, err
	} else if same {
		return nil, fmt.Errorf("%w: %s", ErrSamePath, in)
	}

	src, err := archive.Open(in)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", out, err)
	}
	report, err := p.minifyTo(ctx, src, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", out, cerr)
	}
	if err != nil {
		if rerr := os.Remove(out); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			p.logger.Warn("removing partial output", observability.String("path", out), observability.Error("error", rerr))
		}
		return nil, err
	}
	return report, nil
}

func (p *Pipeline) minifyTo(ctx context.Context, src *archive.Reader, f *os.File) (*Report, error) {
	dst, err := archive.NewWriter(f, p.cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, src, dst)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}
