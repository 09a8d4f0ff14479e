package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"
)

// Same validation the orchestrator applies on enqueue.
var subNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

// LoadSubreddits reads one subreddit name per CSV row, skipping a header row
// and anything that is not a plausible name (fail-soft).
func LoadSubreddits(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1

	var subs []string
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line++
		if len(record) == 0 {
			continue
		}

		sub := strings.TrimSpace(record[0])
		sub = strings.TrimPrefix(strings.ToLower(sub), "r/")
		if line == 1 && sub == "subreddit" {
			continue // header row
		}
		if !subNameRegex.MatchString(sub) {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
