package htmldoc

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// invisibleTags hold content a browser never paints as text.
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// ExtractTitle returns the trimmed <title> content from raw HTML without
// building a DOM. Text split across several tokens is joined.
func ExtractTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	var title strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				return strings.TrimSpace(title.String())
			}
		case html.TextToken:
			if inTitle {
				title.Write(z.Text())
			}
		}
	}
}

// ExtractVisibleText returns the text a browser would paint for the page
// body: tags stripped, invisible elements dropped, chunks joined with
// single spaces.
func ExtractVisibleText(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	var (
		out    strings.Builder
		inBody bool
		hidden int
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(out.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "body":
				inBody = true
			case invisibleTags[tag]:
				hidden++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if invisibleTags[string(name)] && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if !inBody || hidden > 0 {
				continue
			}
			if chunk := strings.TrimSpace(string(z.Text())); chunk != "" {
				out.WriteString(chunk)
				out.WriteByte(' ')
			}
		}
	}
}
