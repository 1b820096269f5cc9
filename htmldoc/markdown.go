package htmldoc

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// mdConverter is shared by all audits; the converter is goroutine-safe.
//
//   - base plugin: strips script, style, iframe, noscript, head, meta,
//     link, input, textarea, and HTML comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: preserves table structure with minimal cell padding.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// ToMarkdown converts HTML to Markdown. The domain resolves relative URLs
// in anchors and images so the output is self-contained.
func ToMarkdown(htmlContent string, domain string) (string, error) {
	return mdConverter.ConvertString(htmlContent, converter.WithDomain(domain))
}

// ContentDigest renders the page's main content as Markdown, truncated to
// maxRunes. Used for the report's at-a-glance content preview; failures
// degrade to the plain extracted text.
func ContentDigest(main MainContent, domain string, maxRunes int) string {
	md, err := ToMarkdown(main.HTML, domain)
	if err != nil || strings.TrimSpace(md) == "" {
		md = main.Text
	}
	md = strings.TrimSpace(md)
	if utf8.RuneCountInString(md) <= maxRunes {
		return md
	}

	runes := []rune(md)
	cut := maxRunes
	// Break at a word boundary near the limit when one is close.
	for i := cut - 1; i > cut-40 && i > 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			cut = i
			break
		}
	}
	return string(runes[:cut]) + "…"
}
