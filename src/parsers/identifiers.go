package parsers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// isinProximity is how far, in bytes, an ISIN may sit from the security name
// and still be attributed to it.
const isinProximity = 500

var isinRe = regexp.MustCompile(`\bIN[A-Z0-9]{10}\b`)

var symbolKeywords = []struct {
	keyword string
	symbol  string
}{
	{"CMS", "CMS"},
	{"INFO SYSTEMS", "CMS"},
	{"GREENPANEL", "GREENPANEL"},
	{"MUTHOOT", "MUTHOOTFIN"},
	{"WONDERLA", "WONDERLA"},
}

var genericNameWords = map[string]bool{
	"LIMITED": true,
	"LTD":     true,
	"INC":     true,
	"CORP":    true,
}

// InferSymbol guesses a ticker from a company name. Known keywords give an exact
// symbol; otherwise the initials of the first three words, generic suffixes
// skipped, are returned with exact set to false.
func InferSymbol(name string) (symbol string, exact bool) {
	upper := strings.ToUpper(name)
	for _, k := range symbolKeywords {
		if strings.Contains(upper, k.keyword) {
			return k.symbol, true
		}
	}

	words := strings.Fields(upper)
	if len(words) > 3 {
		words = words[:3]
	}
	var b strings.Builder
	for _, w := range words {
		if genericNameWords[strings.Trim(w, ".,")] {
			continue
		}
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(r)
	}
	return b.String(), false
}

type isinHit struct {
	isin   string
	offset int
}

func findISINs(text string) []isinHit {
	var hits []isinHit
	for _, loc := range isinRe.FindAllStringIndex(text, -1) {
		hits = append(hits, isinHit{isin: text[loc[0]:loc[1]], offset: loc[0]})
	}
	return hits
}

// wordsPattern matches the words of name separated by any whitespace, so names
// wrapped across lines are still found.
func wordsPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(strings.Join(quoted, `\s+`))
}

func nameOffset(upperText, name string) int {
	words := strings.Fields(strings.ToUpper(name))
	if len(words) == 0 {
		return -1
	}
	if loc := wordsPattern(words).FindStringIndex(upperText); loc != nil {
		return loc[0]
	}
	if n := len(words); n > 1 && words[n-1] == "LIMITED" {
		if loc := wordsPattern(words[:n-1]).FindStringIndex(upperText); loc != nil {
			return loc[0]
		}
	}
	return -1
}

// associateISIN picks the ISIN closest to where name appears in the document,
// if one lies within isinProximity, and the document's first ISIN otherwise.
func associateISIN(upperText, name string, hits []isinHit) string {
	if len(hits) == 0 {
		return ""
	}
	pos := nameOffset(upperText, name)
	if pos < 0 {
		return hits[0].isin
	}

	best, bestDist := "", isinProximity+1
	for _, h := range hits {
		d := h.offset - pos
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = h.isin, d
		}
	}
	if best == "" {
		return hits[0].isin
	}
	return best
}
