package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the n-gram width over the tag sequence. Trigrams keep
// local parent/child context without making every small edit ripple
// through the whole fingerprint.
const shingleSize = 3

// StructureFingerprint computes the SimHash of a document's markup
// structure: the sequence of opening tag names, shingled into trigrams.
// Text, attributes, and comments are ignored, so two pages with the same
// layout but different copy fingerprint identically. Input with no tags
// yields 0.
func StructureFingerprint(htmlStr string) uint64 {
	tags := tagSequence(htmlStr)
	if len(tags) == 0 {
		return 0
	}
	if shingles := shingle(tags, shingleSize); len(shingles) > 0 {
		return fingerprintTokens(shingles)
	}
	// Too few tags to shingle; hash the bare sequence.
	return fingerprintTokens(tags)
}

// tagSequence tokenizes markup and returns the opening tag names in
// document order.
func tagSequence(htmlStr string) []string {
	z := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}

// shingle joins consecutive n-grams of tokens with underscores. Returns
// nil when there are fewer than n tokens.
func shingle(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
