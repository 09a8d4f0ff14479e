package heuristic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/subpirate/analyzer/internal/domain"
)

// titlePattern is one structural title matcher. The template is the
// caller-facing description of the format.
type titlePattern struct {
	name     string
	template string
	re       *regexp.Regexp
}

var titlePatterns = []titlePattern{
	{"question", "Title format: Ask a question the community wants to answer", regexp.MustCompile(`\?\s*$`)},
	{"numbered-list", `Title format: Numbered list ("7 ways to ...")`, regexp.MustCompile(`(?i)^\d+[\s.)]|\b(top|best)\s+\d+\b`)},
	{"how-to", `Title format: How-to guide ("How to ...")`, regexp.MustCompile(`(?i)^how\s+(to|i|we|you)\b`)},
	{"discussion", "Title format: Open discussion prompt", regexp.MustCompile(`(?i)^(what|why|should|does|do|is|are|thoughts|anyone else)\b`)},
	{"breaking-news", "Title format: News or announcement lead", regexp.MustCompile(`(?i)^(breaking|update|announcement|news)\b|\[(breaking|news|update)\]`)},
	{"first-person-story", "Title format: First-person story", regexp.MustCompile(`(?i)^(i|my|we|our)\b`)},
	{"image-showcase", "Title format: Image showcase with a short caption", regexp.MustCompile(`(?i)\[(oc|pic|pics|photo|image)\]|^(this is|here is|here's)\b`)},
	{"request", "Title format: Request for help or recommendations", regexp.MustCompile(`(?i)^(looking for|need help|help|request|can (anyone|someone)|does anyone)\b`)},
}

// deriveTitleTemplates tests every sampled title against the pattern library.
// A pattern is reported only if it matches at least max(2, 15% of the sample);
// when none qualifies a custom pattern is synthesized from structural cues.
func deriveTitleTemplates(titles []string) domain.TitleTemplates {
	n := len(titles)
	if n == 0 {
		return domain.TitleTemplates{Patterns: []string{}, Examples: []string{}}
	}

	threshold := (n*15 + 99) / 100
	if threshold < 2 {
		threshold = 2
	}

	type match struct {
		pattern titlePattern
		count   int
	}
	var qualified []match
	counts := make(map[string]int, len(titlePatterns))
	for _, p := range titlePatterns {
		for _, t := range titles {
			if p.re.MatchString(t) {
				counts[p.name]++
			}
		}
		if counts[p.name] >= threshold {
			qualified = append(qualified, match{p, counts[p.name]})
		}
	}

	if len(qualified) == 0 {
		return synthesizeTemplate(titles)
	}

	sort.SliceStable(qualified, func(i, j int) bool { return qualified[i].count > qualified[j].count })

	patterns := make([]string, 0, len(qualified))
	for _, q := range qualified {
		patterns = append(patterns, q.pattern.template)
	}

	best := qualified[0]
	var examples []string
	for _, t := range titles {
		if best.pattern.re.MatchString(t) {
			examples = append(examples, t)
			if len(examples) == 3 {
				break
			}
		}
	}

	return domain.TitleTemplates{
		Patterns:      patterns,
		Examples:      examples,
		Effectiveness: best.count * 100 / n,
	}
}

// synthesizeTemplate builds a custom pattern from common structural cues, or
// falls back to a style description plus the dominant topic words.
func synthesizeTemplate(titles []string) domain.TitleTemplates {
	n := len(titles)
	threshold := (n*15 + 99) / 100
	if threshold < 2 {
		threshold = 2
	}

	brackets, colons := 0, 0
	leading := make(map[string]int)
	totalLen := 0
	for _, t := range titles {
		trimmed := strings.TrimSpace(t)
		totalLen += len(trimmed)
		if strings.HasPrefix(trimmed, "[") {
			brackets++
		}
		if strings.Contains(trimmed, ":") {
			colons++
		}
		if fields := strings.Fields(strings.ToLower(trimmed)); len(fields) > 0 {
			leading[fields[0]]++
		}
	}

	pattern := ""
	switch {
	case brackets >= threshold:
		pattern = "Title format: [Tag] followed by a short descriptive title"
	case colons >= threshold:
		pattern = "Title format: Topic: supporting detail"
	default:
		if word, count := topEntry(leading); count >= threshold {
			pattern = fmt.Sprintf("Title format: Start with %q like most posts here", word)
		}
	}

	if pattern == "" {
		style := "concise"
		if n > 0 && totalLen/n > 60 {
			style = "detailed"
		}
		topics := topTopics(titles, 3)
		if len(topics) > 0 {
			pattern = fmt.Sprintf("Title format: %s titles about %s", style, strings.Join(topics, ", "))
		} else {
			pattern = fmt.Sprintf("Title format: %s descriptive titles", style)
		}
	}

	examples := titles
	if len(examples) > 3 {
		examples = examples[:3]
	}
	return domain.TitleTemplates{
		Patterns:      []string{pattern},
		Examples:      append([]string(nil), examples...),
		Effectiveness: 40,
	}
}

func topEntry(counts map[string]int) (string, int) {
	bestWord, bestCount := "", 0
	for w, c := range counts {
		if c > bestCount || (c == bestCount && w < bestWord) {
			bestWord, bestCount = w, c
		}
	}
	return bestWord, bestCount
}
