package htmldoc

import (
	"regexp"
	"sort"
	"strings"
)

var (
	reWord     = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	reSentence = regexp.MustCompile(`[.!?]+`)
)

// stopwords filtered out of keyword extraction. Deliberately small: the
// goal is surfacing candidate topics, not linguistic precision.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {},
}

// Words tokenizes text into lowercased word tokens.
func Words(text string) []string {
	return reWord.FindAllString(strings.ToLower(text), -1)
}

// Sentences splits text on terminal punctuation, dropping empty segments.
func Sentences(text string) []string {
	parts := reSentence.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// KeywordCount is one extracted keyword with its occurrence count.
type KeywordCount struct {
	Word  string
	Count int
}

// TopKeywords returns the n most frequent non-stopword tokens, most
// frequent first. Ties break alphabetically so results are stable.
func TopKeywords(words []string, n int) []KeywordCount {
	freq := make(map[string]int)
	for _, w := range words {
		if _, skip := stopwords[w]; skip {
			continue
		}
		freq[w]++
	}

	counts := make([]KeywordCount, 0, len(freq))
	for w, c := range freq {
		counts = append(counts, KeywordCount{Word: w, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// Density returns how many percent of the word count the given occurrence
// count represents.
func Density(count, totalWords int) float64 {
	if totalWords <= 0 {
		return 0
	}
	return float64(count) / float64(totalWords) * 100
}

// ReadabilityStats are the sentence-level metrics behind the Flesch
// reading-ease score.
type ReadabilityStats struct {
	SentenceCount     int
	AvgSentenceLength float64 // words per sentence
	AvgSyllables      float64 // syllables per word
	FleschScore       float64
}

// Readability computes Flesch reading ease over the given text using an
// approximate syllable count.
func Readability(text string, words []string) ReadabilityStats {
	sentences := Sentences(text)
	stats := ReadabilityStats{SentenceCount: len(sentences)}

	wordCount := len(words)
	if wordCount == 0 {
		return stats
	}

	sentenceDiv := stats.SentenceCount
	if sentenceDiv < 1 {
		sentenceDiv = 1
	}
	stats.AvgSentenceLength = float64(wordCount) / float64(sentenceDiv)

	totalSyllables := 0
	for _, w := range words {
		totalSyllables += SyllableCount(w)
	}
	stats.AvgSyllables = float64(totalSyllables) / float64(wordCount)

	stats.FleschScore = 206.835 - (1.015 * stats.AvgSentenceLength) - (84.6 * stats.AvgSyllables)
	return stats
}

// SyllableCount estimates the syllables in a word by counting vowel
// groups, with a silent-e adjustment. Every word counts at least one.
func SyllableCount(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}
