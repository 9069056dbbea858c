package search

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// stopWords are discarded during keyword extraction; they carry no signal
// for relevance scoring.
var stopWords = map[string]struct{}{
	"for": {}, "in": {}, "is": {}, "what": {}, "the": {},
	"a": {}, "an": {}, "to": {}, "of": {}, "and": {}, "on": {},
}

// tokenPattern matches keyword runs. # and + are kept so language names
// like c# and c++ survive tokenization.
var tokenPattern = regexp.MustCompile(`[a-z0-9#+]+`)

// queryRewriter spells out symbols that the search endpoint matches poorly.
var queryRewriter = strings.NewReplacer(
	"++", " plus plus",
	"#", " sharp",
	"&", " and ",
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// RewriteQuery applies the symbol substitutions to a title and collapses
// the resulting whitespace, producing the upstream search query.
func RewriteQuery(title string) string {
	q := queryRewriter.Replace(title)
	q = multiSpace.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// Keywords extracts the scoring keywords from a title: NFKC-folded,
// lower-cased, tokenized on alphanumeric-plus-#+ runs, stop words removed.
func Keywords(title string) []string {
	folded := strings.ToLower(norm.NFKC.String(title))

	var keywords []string
	for _, tok := range tokenPattern.FindAllString(folded, -1) {
		if _, skip := stopWords[tok]; skip {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}
