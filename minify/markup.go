package minify

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// TrimLines strips leading and trailing whitespace from every line of text
// and terminates each line with CRLF. Lines are split on LF; a final empty
// line after a trailing LF is not emitted. Empty input yields empty output.
//
// TrimLines is idempotent.
func TrimLines(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/16)
	for len(text) > 0 {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = ""
		}
		b.WriteString(strings.TrimSpace(line))
		b.WriteString("\r\n")
	}
	return b.String()
}

// processMarkup records the characters of data in chars when fonts are
// subset, and returns data trimmed when trim is set. The result aliases
// data when it is written unchanged.
func processMarkup(data []byte, trim bool, chars *CharSet) ([]byte, error) {
	if !utf8.Valid(data) {
		return nil, ErrMarkupEncoding
	}
	text := string(data)
	if chars != nil {
		chars.AddText(text)
		addReferencedText(chars, text)
	}
	if !trim {
		return data, nil
	}
	return []byte(TrimLines(text)), nil
}

// addReferencedText records the characters that character references in
// text expand to, in both text content and attribute values.
func addReferencedText(chars *CharSet, text string) {
	if !strings.ContainsRune(text, '&') {
		return
	}
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.TextToken:
			chars.AddText(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			_, more := z.TagName()
			for more {
				var val []byte
				_, val, more = z.TagAttr()
				chars.AddText(string(val))
			}
		}
	}
}
