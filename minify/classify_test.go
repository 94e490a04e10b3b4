package minify

import (
	"testing"

	"github.com/woozymasta/pathrules"
)

func TestClassify(t *testing.T) {
	all := DefaultConfig()
	all.Images, all.Fonts, all.XHTML = true, true, true

	fontsOnly := DefaultConfig()
	fontsOnly.Fonts = true

	xhtmlOnly := DefaultConfig()
	xhtmlOnly.XHTML = true

	tests := []struct {
		name   string
		cfg    Config
		entry  string
		isFile bool
		want   Category
	}{
		{"image", all, "OEBPS/images/cover.jpg", true, CategoryImage},
		{"image suffix is case sensitive", all, "OEBPS/images/cover.JPG", true, CategoryPassthrough},
		{"jpeg extension not handled", all, "cover.jpeg", true, CategoryPassthrough},
		{"font", all, "OEBPS/fonts/serif.otf", true, CategoryFont},
		{"truetype not handled", all, "OEBPS/fonts/serif.ttf", true, CategoryPassthrough},
		{"markup", all, "OEBPS/text/ch01.xhtml", true, CategoryMarkup},
		{"html not handled", all, "OEBPS/text/ch01.html", true, CategoryPassthrough},
		{"directory named like image", all, "OEBPS/weird.jpg/", false, CategoryPassthrough},
		{"mimetype", all, "mimetype", true, CategoryPassthrough},
		{"images disabled", fontsOnly, "cover.jpg", true, CategoryPassthrough},
		{"markup scanned for fonts", fontsOnly, "ch01.xhtml", true, CategoryMarkup},
		{"markup trimmed", xhtmlOnly, "ch01.xhtml", true, CategoryMarkup},
		{"fonts disabled", xhtmlOnly, "serif.otf", true, CategoryPassthrough},
		{"nothing enabled", DefaultConfig(), "ch01.xhtml", true, CategoryPassthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClassifier(tt.cfg)
			if err != nil {
				t.Fatalf("NewClassifier: %v", err)
			}
			if got := c.Classify(tt.entry, tt.isFile); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.entry, got, tt.want)
			}
		})
	}
}

func TestClassifyPreserve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Images, cfg.Fonts, cfg.XHTML = true, true, true
	cfg.Preserve = []pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "OEBPS/keep/**"},
		{Action: pathrules.ActionExclude, Pattern: "OEBPS/keep/trim/**"},
		{Action: pathrules.ActionInclude, Pattern: `  OEBPS\fonts\logo.otf `},
	}

	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	tests := map[string]Category{
		"OEBPS/keep/a.jpg":        CategoryPassthrough,
		"OEBPS/keep/b.xhtml":      CategoryPassthrough,
		"OEBPS/keep/trim/c.xhtml": CategoryMarkup,
		"OEBPS/fonts/logo.otf":    CategoryPassthrough,
		"OEBPS/fonts/body.otf":    CategoryFont,
		"OEBPS/images/a.jpg":      CategoryImage,
	}
	for name, want := range tests {
		if got := c.Classify(name, true); got != want {
			t.Errorf("Classify(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestNewClassifierRejectsBadRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preserve = []pathrules.Rule{{Action: pathrules.ActionUnknown, Pattern: "*.jpg"}}
	if _, err := NewClassifier(cfg); err == nil {
		t.Fatal("expected error for rule without action")
	}
}

func TestCategoryString(t *testing.T) {
	if got := CategoryFont.String(); got != "font" {
		t.Errorf("CategoryFont.String() = %q", got)
	}
	if got := Category(42).String(); got != "Category(42)" {
		t.Errorf("Category(42).String() = %q", got)
	}
}
