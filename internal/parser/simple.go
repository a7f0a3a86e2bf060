// Package parser extracts a field pair (first name and surname or handle, or
// network name and password) from OCR text.
//
// SimpleTextParser works line by line and yields candidates lazily in priority
// order:
//
//  1. Labelled values such as "Network: 65twenty_guest" / "Password: guest7ad",
//     "WiFi droidconuk", several labels on one line, or a label alone on a line
//     followed by its value on the next one. The n-th first-field value is
//     paired with the n-th second-field value.
//  2. Consecutive lines that each hold a single credential-like token.
//  3. Lines holding exactly two capitalised words, as printed on name badges.
//
// Duplicate and incomplete pairs are never yielded.
package parser

import (
	"errors"
	"iter"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"wirelens/internal/logger"
	"wirelens/pkg/models"
)

// ErrNoMatch is returned when the text contains no usable field pair.
var ErrNoMatch = errors.New("no field pair found in text")

type field int

const (
	fieldNone field = iota
	fieldFirst
	fieldSecond
)

// Longer alternatives come first so that "network name" wins over "network".
const labels = `wi-?fi\s+name|wi-?fi|wlan|ssid|network\s+name|network|user\s*name|user|login|first\s*name|name|` +
	`pass\s*word|passcode|passphrase|pass|pwd|pw|wpa2?\s+key|key|handle|surname|last\s*name`

var (
	// "Label: value" or "Label = value", possibly several per line
	labelValueRE = regexp.MustCompile(`(?i)\b(` + labels + `)\s*[:=]\s*`)

	// "Label value" with a single token value
	labelSpaceRE = regexp.MustCompile(`(?i)^(` + labels + `)\s+(\S+)$`)

	// A label on its own, value expected on the next line
	labelOnlyRE = regexp.MustCompile(`(?i)^(` + labels + `)\s*[:=]?$`)

	tokenRE = regexp.MustCompile(`^[A-Za-z0-9_\-.@!#$%&*+]{3,63}$`)

	nameRE = regexp.MustCompile(`^(\p{Lu}[\p{L}'\-]+)\s+(\p{Lu}[\p{L}'\-]+)$`)

	spaceRE = regexp.MustCompile(`[\s\-]+`)
)

// SimpleTextParser parses OCR responses into field pairs.
type SimpleTextParser struct {
	log zerolog.Logger
}

// NewSimpleTextParser creates a parser.
func NewSimpleTextParser() *SimpleTextParser {
	return &SimpleTextParser{
		log: logger.WithComponent("parser"),
	}
}

// ParseResponse returns the candidate pairs for resp in priority order.
// Later strategies only run while the caller keeps iterating.
func (p *SimpleTextParser) ParseResponse(resp models.OCRResponse) iter.Seq[models.TextParserResponse] {
	return func(yield func(models.TextParserResponse) bool) {
		lines := splitLines(resp.Text)
		if len(lines) == 0 {
			return
		}

		seen := make(map[models.TextParserResponse]bool)
		emit := func(r models.TextParserResponse) bool {
			if !r.Complete() || seen[r] {
				return true
			}
			seen[r] = true
			return yield(r)
		}

		labelled, used := labelledPairs(lines)
		for _, r := range labelled {
			if !emit(r) {
				return
			}
		}
		for _, r := range tokenPairs(lines, used) {
			if !emit(r) {
				return
			}
		}
		for _, r := range namePairs(lines, used) {
			if !emit(r) {
				return
			}
		}
	}
}

// First returns the highest priority candidate, or ErrNoMatch.
func (p *SimpleTextParser) First(resp models.OCRResponse) (models.TextParserResponse, error) {
	for r := range p.ParseResponse(resp) {
		p.log.Debug().
			Str("first_name", r.FirstName).
			Str("surname_or_handle", r.SurnameOrHandle).
			Msg("Parsed field pair")
		return r, nil
	}
	return models.TextParserResponse{}, ErrNoMatch
}

// All collects up to limit candidates; limit <= 0 collects all of them.
func (p *SimpleTextParser) All(resp models.OCRResponse, limit int) []models.TextParserResponse {
	var out []models.TextParserResponse
	for r := range p.ParseResponse(resp) {
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Partial returns the first labelled value of each field, even when the other
// field is missing. It is used as a hint for AI completion.
func (p *SimpleTextParser) Partial(resp models.OCRResponse) models.TextParserResponse {
	lv := labelledValues(splitLines(resp.Text))
	var partial models.TextParserResponse
	if len(lv.firsts) > 0 {
		partial.FirstName = lv.firsts[0]
	}
	if len(lv.seconds) > 0 {
		partial.SurnameOrHandle = lv.seconds[0]
	}
	return partial
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func labelledPairs(lines []string) ([]models.TextParserResponse, map[int]bool) {
	lv := labelledValues(lines)

	n := min(len(lv.firsts), len(lv.seconds))
	pairs := make([]models.TextParserResponse, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, models.TextParserResponse{
			FirstName:       lv.firsts[i],
			SurnameOrHandle: lv.seconds[i],
		})
	}

	// "Name: Grace Hopper" with no second-field label
	if len(lv.seconds) == 0 {
		for _, name := range lv.names {
			if m := nameRE.FindStringSubmatch(name); m != nil {
				pairs = append(pairs, models.TextParserResponse{FirstName: m[1], SurnameOrHandle: m[2]})
			}
		}
	}
	return pairs, lv.used
}

type labelled struct {
	firsts  []string
	seconds []string
	names   []string // first-field values given under a "name" label
	used    map[int]bool
}

// labelledValues collects labelled values per field in reading order and
// reports which line indexes were consumed.
func labelledValues(lines []string) labelled {
	lv := labelled{used: make(map[int]bool)}
	add := func(label, value string) {
		value = cleanValue(value)
		if value == "" {
			return
		}
		switch classify(label) {
		case fieldFirst:
			lv.firsts = append(lv.firsts, value)
			if isNameLabel(label) {
				lv.names = append(lv.names, value)
			}
		case fieldSecond:
			lv.seconds = append(lv.seconds, value)
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := labelOnlyRE.FindStringSubmatch(line); m != nil {
			lv.used[i] = true
			if i+1 < len(lines) && !startsWithLabel(lines[i+1]) {
				add(m[1], lines[i+1])
				lv.used[i+1] = true
				i++
			}
			continue
		}

		if segments := labelSegments(line); len(segments) > 0 {
			lv.used[i] = true
			for _, seg := range segments {
				add(seg.label, seg.value)
			}
			continue
		}

		if m := labelSpaceRE.FindStringSubmatch(line); m != nil {
			lv.used[i] = true
			add(m[1], m[2])
		}
	}

	return lv
}

type segment struct {
	label string
	value string
}

// labelSegments splits "Label: value" lines. The line must start with a label;
// a later label only starts a new segment when it follows whitespace and
// names the other field, so "SSID: Cafe Key: latte" splits while
// "Password: guest Key: 12345" keeps the whole value.
func labelSegments(line string) []segment {
	matches := labelValueRE.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 || matches[0][0] != 0 {
		return nil
	}

	accepted := [][]int{matches[0]}
	prev := classify(line[matches[0][2]:matches[0][3]])
	for _, m := range matches[1:] {
		if !unicode.IsSpace(rune(line[m[0]-1])) {
			continue
		}
		f := classify(line[m[2]:m[3]])
		if f == prev {
			continue
		}
		accepted = append(accepted, m)
		prev = f
	}

	segments := make([]segment, 0, len(accepted))
	for j, m := range accepted {
		end := len(line)
		if j+1 < len(accepted) {
			end = accepted[j+1][0]
		}
		segments = append(segments, segment{label: line[m[2]:m[3]], value: line[m[1]:end]})
	}
	return segments
}

// startsWithLabel reports whether line opens a labelled value of its own. A
// bare label word such as "pass" does not count, it may be the value itself.
func startsWithLabel(line string) bool {
	if m := labelOnlyRE.FindStringSubmatch(line); m != nil {
		return len(line) > len(m[1])
	}
	return labelSegments(line) != nil || labelSpaceRE.MatchString(line)
}

func isNameLabel(label string) bool {
	switch strings.ToLower(spaceRE.ReplaceAllString(label, "")) {
	case "name", "firstname":
		return true
	}
	return false
}

func classify(label string) field {
	switch strings.ToLower(spaceRE.ReplaceAllString(label, "")) {
	case "wifiname", "wifi", "wlan", "ssid", "networkname", "network", "username", "user", "login", "firstname", "name":
		return fieldFirst
	case "password", "passcode", "passphrase", "pass", "pwd", "pw", "wpakey", "wpa2key", "key", "handle", "surname", "lastname":
		return fieldSecond
	default:
		return fieldNone
	}
}

func tokenPairs(lines []string, used map[int]bool) []models.TextParserResponse {
	var tokens []string
	for i, line := range lines {
		if !used[i] && tokenRE.MatchString(line) {
			tokens = append(tokens, line)
		}
	}

	var pairs []models.TextParserResponse
	for i := 0; i+1 < len(tokens); i++ {
		pairs = append(pairs, models.TextParserResponse{
			FirstName:       tokens[i],
			SurnameOrHandle: tokens[i+1],
		})
	}
	return pairs
}

func namePairs(lines []string, used map[int]bool) []models.TextParserResponse {
	var pairs []models.TextParserResponse
	for i, line := range lines {
		if used[i] {
			continue
		}
		if m := nameRE.FindStringSubmatch(line); m != nil {
			pairs = append(pairs, models.TextParserResponse{
				FirstName:       m[1],
				SurnameOrHandle: m[2],
			})
		}
	}
	return pairs
}

func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"'“”‘’`")
	value = strings.TrimRight(value, ".,;")
	return strings.TrimSpace(value)
}
