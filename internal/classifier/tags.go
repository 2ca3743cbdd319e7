
package classifier

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTags is the tag budget per record.
const DefaultMaxTags = 10

// English stopwords dropped before ranking.
var stopwordsEN = toSet(
	"the", "and", "a", "an", "to", "of", "in", "for", "on", "at", "by", "is", "it", "this", "that",
	"with", "as", "from", "or", "are", "be", "was", "were", "but", "not", "we", "you", "they", "their",
	"our", "your", "about", "all", "can", "has", "have", "will", "more", "one", "two", "new", "how",
	"what", "why", "when", "where", "which", "who", "use", "using", "used", "into", "over", "if",
	"also", "may", "just",
)

// stopwordsRU is reserved for a second language and intentionally empty.
var stopwordsRU = toSet()

var (
	urlRe     = regexp.MustCompile(`https?://[^\s\p{Zs}]+`)
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
)

// IsStopword reports whether w is dropped by ExtractTags.
func IsStopword(w string) bool {
	_, en := stopwordsEN[w]
	_, ru := stopwordsRU[w]
	return en || ru
}

// ExtractTags returns up to maxTags lowercase keywords ranked by frequency.
// Ties keep the order in which the words first appear. maxTags <= 0 means
// DefaultMaxTags.
func ExtractTags(text string, maxTags int) []string {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	text = strings.ToLower(text)
	text = urlRe.ReplaceAllString(text, " ")
	text = nonWordRe.ReplaceAllString(text, " ")

	freq := map[string]int{}
	var order []string
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) < 3 || IsStopword(w) {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > maxTags {
		order = order[:maxTags]
	}
	return order
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
