package minify

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// Category is the transform an archive entry is routed to.
type Category int

const (
	CategoryPassthrough Category = iota
	CategoryImage
	CategoryFont
	CategoryMarkup

	categoryCount
)

func (c Category) String() string {
	switch c {
	case CategoryPassthrough:
		return "passthrough"
	case CategoryImage:
		return "image"
	case CategoryFont:
		return "font"
	case CategoryMarkup:
		return "markup"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Entry name suffixes, matched case-sensitively.
const (
	suffixImage  = ".jpg"
	suffixFont   = ".otf"
	suffixMarkup = ".xhtml"
)

// Classifier assigns a Category to each archive entry. Its result depends
// only on the entry name, the file flag and the Config it was built from.
type Classifier struct {
	images, fonts, xhtml bool
	preserve             *pathrules.Matcher
}

// NewClassifier compiles the classification rules of cfg.
func NewClassifier(cfg Config) (*Classifier, error) {
	preserve, err := newPreserveMatcher(cfg.Preserve, cfg.PreserveOptions)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		images:   cfg.Images,
		fonts:    cfg.Fonts,
		xhtml:    cfg.XHTML,
		preserve: preserve,
	}, nil
}

// Classify applies the rules in order; the first match wins:
//  1. preserved paths are passed through;
//  2. images enabled, a file, name ends in .jpg: image;
//  3. fonts enabled, a file, name ends in .otf: font;
//  4. xhtml or fonts enabled, a file, name ends in .xhtml: markup;
//  5. anything else, directories included: passthrough.
//
// With fonts enabled and xhtml disabled, markup entries are only scanned
// for characters and written unchanged.
func (c *Classifier) Classify(name string, isFile bool) Category {
	switch {
	case !isFile:
		return CategoryPassthrough
	case c.preserved(name):
		return CategoryPassthrough
	case c.images && strings.HasSuffix(name, suffixImage):
		return CategoryImage
	case c.fonts && strings.HasSuffix(name, suffixFont):
		return CategoryFont
	case (c.xhtml || c.fonts) && strings.HasSuffix(name, suffixMarkup):
		return CategoryMarkup
	default:
		return CategoryPassthrough
	}
}

func (c *Classifier) preserved(name string) bool {
	return c.preserve != nil && c.preserve.Included(name, false)
}

func newPreserveMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathrules.Matcher, error) {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimSpace(strings.ReplaceAll(rule.Pattern, `\`, "/"))
		if pattern == "" {
			continue
		}
		normalized = append(normalized, pathrules.Rule{Action: rule.Action, Pattern: pattern})
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	if opts == (pathrules.MatcherOptions{}) {
		opts = pathrules.MatcherOptions{CaseInsensitive: true, DefaultAction: pathrules.ActionExclude}
	}
	if opts.DefaultAction == pathrules.ActionUnknown {
		opts.DefaultAction = pathrules.ActionExclude
	}

	m, err := pathrules.NewMatcher(normalized, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: preserve rules: %w", ErrInvalidConfig, err)
	}
	return m, nil
}
