// Package simhash produces 64-bit locality-sensitive fingerprints for
// comparing the raw and JavaScript-rendered variants of an audited page.
// Near-identical inputs land within a few bits of each other, so a small
// Hamming distance threshold separates "same content" from "the client
// rewrote the page".
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes the SimHash of text over whitespace-separated
// tokens. Whitespace-only input yields 0.
func Fingerprint(text string) uint64 {
	return fingerprintTokens(strings.Fields(text))
}

// fingerprintTokens runs the bit-vote accumulation: each token's FNV-64a
// hash votes its set bits up and its clear bits down, and the sign of
// each vote becomes one fingerprint bit.
func fingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var votes [64]int
	for _, tok := range tokens {
		h := tokenHash(tok)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit, v := range votes {
		if v > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

func tokenHash(tok string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tok))
	return h.Sum64()
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two fingerprints are within threshold bits of
// each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
