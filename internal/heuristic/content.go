package heuristic

import (
	"sort"
	"strings"

	"github.com/subpirate/analyzer/internal/domain"
)

var imageHints = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", "i.redd.it", "imgur.com"}
var videoHints = []string{".mp4", ".webm", ".mov", "v.redd.it", "youtube.com", "youtu.be"}

// classifyContent sniffs the content type of a post from its URL and selftext,
// not from rule text: this is what the community verifiably upvotes.
func classifyContent(p domain.Post) string {
	url := strings.ToLower(p.URL)
	for _, hint := range imageHints {
		if strings.Contains(url, hint) {
			return "image"
		}
	}
	for _, hint := range videoHints {
		if strings.Contains(url, hint) {
			return "video"
		}
	}
	if p.IsSelf || p.SelfText != "" {
		return "text"
	}
	return "link"
}

// recommendedTypes returns the content types present in the sample, most
// frequent first.
func recommendedTypes(posts []domain.Post) []string {
	counts := make(map[string]int, 4)
	for _, p := range posts {
		counts[classifyContent(p)]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.SliceStable(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	return types
}

var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "what": {}, "when": {},
	"where": {}, "your": {}, "just": {}, "have": {}, "will": {}, "about": {},
	"been": {}, "they": {}, "their": {}, "there": {}, "would": {}, "should": {},
	"could": {}, "here": {}, "some": {}, "more": {}, "most": {}, "only": {},
	"over": {}, "after": {}, "before": {}, "into": {}, "them": {}, "then": {},
	"than": {}, "very": {}, "like": {}, "does": {}, "dont": {}, "don't": {},
	"anyone": {}, "else": {}, "best": {}, "ever": {}, "every": {}, "need": {},
	"help": {}, "make": {}, "made": {}, "much": {}, "many": {}, "still": {},
}

// topTopics extracts the n most frequent non-stopword title words longer than
// three characters. Deterministic: ties break alphabetically.
func topTopics(titles []string, n int) []string {
	counts := make(map[string]int)
	for _, title := range titles {
		for _, word := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '\''
		}) {
			if len(word) <= 3 {
				continue
			}
			if _, skip := stopwords[word]; skip {
				continue
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
