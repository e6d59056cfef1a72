// Package parser turns a raw query string into the one or two normalised
// terms the executor intersects. Words are joined by an implicit or
// explicit AND; OR and NOT are rejected. Operators are upper-case only, so
// "and", "or" and "not" are ordinary words that can be searched for.
package parser

import (
	"strings"

	"github.com/searchlab/tweetindex/internal/indexer/tokenizer"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
)

// MaxTerms is the largest conjunction the executor answers.
const MaxTerms = 2

type QueryPlan struct {
	Terms    []string
	RawQuery string
}

// Parse normalises query with the same tokenizer used at index time, so
// "Side-Effects!" and "side-effects" select the same term. A query with no
// surviving terms yields an empty plan, not an error.
func Parse(query string) (*QueryPlan, error) {
	plan := &QueryPlan{
		Terms:    make([]string, 0, MaxTerms),
		RawQuery: query,
	}
	seen := make(map[string]struct{}, MaxTerms)
	words := strings.Fields(query)
	for i, word := range words {
		switch word {
		case "AND":
			if i == 0 || i == len(words)-1 {
				return nil, apperrors.Newf(apperrors.ErrInvalidQuery, 400, "dangling AND in %q", query)
			}
			continue
		case "OR", "NOT":
			return nil, apperrors.Newf(apperrors.ErrUnsupportedOperator, 400, "%s is not supported", word)
		}
		for _, tok := range tokenizer.Tokenize(word) {
			if _, dup := seen[tok.Term]; dup {
				continue
			}
			seen[tok.Term] = struct{}{}
			plan.Terms = append(plan.Terms, tok.Term)
		}
	}
	if len(plan.Terms) > MaxTerms {
		return nil, apperrors.Newf(apperrors.ErrTooManyTerms, 400, "%d terms in %q", len(plan.Terms), query)
	}
	return plan, nil
}

// Key is an order-independent identity for the plan; intersection is
// symmetric, so "a b" and "b a" share it.
func (p *QueryPlan) Key() string {
	switch len(p.Terms) {
	case 0:
		return ""
	case 1:
		return p.Terms[0]
	default:
		a, b := p.Terms[0], p.Terms[1]
		if b < a {
			a, b = b, a
		}
		return a + "\x00" + b
	}
}
