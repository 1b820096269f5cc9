package htmldoc

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minMainLength is the minimum extracted text length (in characters) for
// readability output to be considered valid. Below this threshold we assume
// the algorithm failed to locate the main content.
const minMainLength = 50

// MainContent is the readability-extracted article body of a page.
type MainContent struct {
	Title     string
	Byline    string
	Excerpt   string
	HTML      string
	Text      string
	Extracted bool // false when extraction failed and fields hold fallbacks
}

// ExtractMain runs the Mozilla Readability algorithm on rawHTML.
//
// The audit must never fail just because readability choked, so every
// failure path returns a usable fallback with Extracted=false:
//   - invalid source URL            → raw HTML / stripped text
//   - readability.FromReader errors → raw HTML / stripped text
//   - extracted text under 50 chars → raw HTML / stripped text
func ExtractMain(rawHTML string, sourceURL string) MainContent {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("htmldoc: invalid source URL, using full page as main content",
			"url", sourceURL, "error", err,
		)
		return fallbackMain(rawHTML)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("htmldoc: readability extraction failed, using full page",
			"url", sourceURL, "error", err,
		)
		return fallbackMain(rawHTML)
	}

	if len(strings.TrimSpace(article.TextContent)) < minMainLength {
		slog.Warn("htmldoc: extracted main content too short, using full page",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return fallbackMain(rawHTML)
	}

	return MainContent{
		Title:     article.Title,
		Byline:    article.Byline,
		Excerpt:   article.Excerpt,
		HTML:      article.Content,
		Text:      article.TextContent,
		Extracted: true,
	}
}

// fallbackMain wraps the raw page so downstream consumers always have text
// to work with.
func fallbackMain(rawHTML string) MainContent {
	return MainContent{
		HTML: rawHTML,
		Text: ExtractVisibleText([]byte(rawHTML)),
	}
}
