// Package richtext turns forum post bodies into short plain-text excerpts.
// Bodies arrive URI-encoded and are either a Quill delta document or markdown.
package richtext

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const ExcerptLength = 150

var (
	markdown  = goldmark.New()
	stripTags = bluemonday.StrictPolicy()

	imageURLPattern = regexp.MustCompile(`(?i)https?://[^\s"'()<>\[\]]+?\.(?:jpe?g|gif|png|webp)`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// Decode reverses the URI encoding applied by the web client. Strings that are
// not valid escapes are returned unchanged.
func Decode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

type delta struct {
	Ops []struct {
		Insert json.RawMessage `json:"insert"`
	} `json:"ops"`
}

// PlainText renders a body as whitespace-collapsed text.
func PlainText(body string) string {
	body = Decode(body)
	if text, ok := fromDelta(body); ok {
		return collapse(text)
	}
	return collapse(fromMarkdown(body))
}

// Excerpt is PlainText cut to at most n runes, with an ellipsis when cut.
func Excerpt(body string, n int) string {
	text := PlainText(body)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// FirstImageURL finds the first image link anywhere in the body.
func FirstImageURL(body string) (string, bool) {
	match := imageURLPattern.FindString(Decode(body))
	return match, match != ""
}

func fromDelta(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}

	var doc delta
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil || doc.Ops == nil {
		return "", false
	}

	var b strings.Builder
	for _, op := range doc.Ops {
		var s string
		if err := json.Unmarshal(op.Insert, &s); err != nil {
			// embeds (images, mentions) carry no text
			continue
		}
		b.WriteString(s)
	}
	return b.String(), true
}

func fromMarkdown(body string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return body
	}
	return html.UnescapeString(stripTags.Sanitize(buf.String()))
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
