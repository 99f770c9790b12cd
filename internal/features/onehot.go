package features

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Universe is the ordered, immutable set of tokens a one-hot group knows about.
type Universe struct {
	name   string
	tokens []string
	index  map[string]int
}

// NewUniverse validates tokens and builds a Universe. Tokens must be unique,
// non-empty, lowercase and free of whitespace.
func NewUniverse(name string, tokens []string) (*Universe, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: universe %q is empty", ErrInvalidUniverse, name)
	}

	u := &Universe{
		name:   name,
		tokens: make([]string, len(tokens)),
		index:  make(map[string]int, len(tokens)),
	}
	for i, t := range tokens {
		switch {
		case t == "":
			return nil, fmt.Errorf("%w: universe %q has an empty token at %d", ErrInvalidUniverse, name, i)
		case t != strings.ToLower(t):
			return nil, fmt.Errorf("%w: universe %q token %q is not lowercase", ErrInvalidUniverse, name, t)
		case strings.IndexFunc(t, unicode.IsSpace) >= 0:
			return nil, fmt.Errorf("%w: universe %q token %q contains whitespace", ErrInvalidUniverse, name, t)
		}
		if _, dup := u.index[t]; dup {
			return nil, fmt.Errorf("%w: universe %q has duplicate token %q", ErrInvalidUniverse, name, t)
		}
		u.tokens[i] = t
		u.index[t] = i
	}
	return u, nil
}

// Name returns the universe name.
func (u *Universe) Name() string { return u.name }

// Len returns the number of tokens.
func (u *Universe) Len() int { return len(u.tokens) }

// Tokens returns a copy of the tokens in declaration order.
func (u *Universe) Tokens() []string {
	out := make([]string, len(u.tokens))
	copy(out, u.tokens)
	return out
}

// Contains reports whether token is a member. Matching is by full equality only.
func (u *Universe) Contains(token string) bool {
	_, ok := u.index[token]
	return ok
}

// Keys returns "{prefix}_{token}" for every token, in universe order.
func (u *Universe) Keys(prefix string) []string {
	keys := make([]string, len(u.tokens))
	for i, t := range u.tokens {
		keys[i] = oneHotKey(prefix, t)
	}
	return keys
}

// DisplayLabels returns the sorted, de-duplicated display labels for the universe.
func (u *Universe) DisplayLabels() []string {
	seen := make(map[string]struct{}, len(u.tokens))
	labels := make([]string, 0, len(u.tokens))
	for _, t := range u.tokens {
		l := DisplayLabel(t)
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Outcome tags how a one-hot group was filled.
type Outcome int

const (
	// Matched means exactly one slot is set.
	Matched Outcome = iota
	// FallbackZero means the token was outside the universe and every slot is 0.
	FallbackZero
)

func (o Outcome) String() string {
	if o == Matched {
		return "matched"
	}
	return "fallback_zero"
}

// OneHot is a fixed-width encoding of one categorical group.
type OneHot struct {
	Keys    []string
	Values  []float64
	Token   string
	Outcome Outcome
}

// Encode one-hot encodes token against u. Every "{prefix}_{u}" key starts at 0;
// the slot for token is set to 1 only when token is a member of u. A token
// outside u yields the all-zero group tagged FallbackZero rather than an error.
func Encode(token string, u *Universe, prefix string) OneHot {
	oh := OneHot{
		Keys:    u.Keys(prefix),
		Values:  make([]float64, u.Len()),
		Token:   token,
		Outcome: FallbackZero,
	}
	if i, ok := u.index[token]; ok {
		oh.Values[i] = 1
		oh.Outcome = Matched
	}
	return oh
}

// Map returns the group as a key -> value map.
func (oh OneHot) Map() map[string]float64 {
	m := make(map[string]float64, len(oh.Keys))
	for i, k := range oh.Keys {
		m[k] = oh.Values[i]
	}
	return m
}

func oneHotKey(prefix, token string) string {
	return prefix + "_" + token
}
