// Package simhash fingerprints page layout so that vendor template changes
// show up as a growing Hamming distance between runs.
package simhash

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Fingerprint computes a 64-bit SimHash over whitespace-separated tokens.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()
		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Layout fingerprints the element structure of an HTML document. Each
// element contributes "tag.class1.class2" (classes sorted), and tokens are
// shingled in threes so ordering matters. Text content is ignored.
func Layout(htmlStr string) uint64 {
	tokens := layoutTokens(htmlStr)
	if len(tokens) == 0 {
		return 0
	}
	if len(tokens) < 3 {
		return Fingerprint(strings.Join(tokens, " "))
	}

	shingles := make([]string, 0, len(tokens)-2)
	for i := 0; i+3 <= len(tokens); i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+3], "|"))
	}
	return Fingerprint(strings.Join(shingles, " "))
}

// Hex renders a fingerprint as 16 lowercase hex digits.
func Hex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// DistanceHex compares two fingerprints rendered by Hex.
func DistanceHex(a, b string) (int, error) {
	fa, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, err
	}
	fb, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, err
	}
	return Distance(fa, fb), nil
}

func layoutTokens(htmlStr string) []string {
	z := html.NewTokenizer(strings.NewReader(htmlStr))
	var tokens []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			token := string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "class" {
					classes := strings.Fields(string(val))
					sort.Strings(classes)
					if len(classes) > 0 {
						token += "." + strings.Join(classes, ".")
					}
				}
			}
			tokens = append(tokens, token)
		}
	}
}
