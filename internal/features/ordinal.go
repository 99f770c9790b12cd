package features

import "fmt"

// Scale is a fixed total order of labels; position defines rank.
type Scale struct {
	name   string
	labels []string
	rank   map[string]int
}

// NewScale builds a Scale. Labels must be non-empty and unique.
func NewScale(name string, labels []string) (*Scale, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: scale %q is empty", ErrInvalidUniverse, name)
	}
	s := &Scale{
		name:   name,
		labels: make([]string, len(labels)),
		rank:   make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("%w: scale %q has an empty label at %d", ErrInvalidUniverse, name, i)
		}
		if _, dup := s.rank[l]; dup {
			return nil, fmt.Errorf("%w: scale %q has duplicate label %q", ErrInvalidUniverse, name, l)
		}
		s.labels[i] = l
		s.rank[l] = i
	}
	return s, nil
}

// Name returns the scale name.
func (s *Scale) Name() string { return s.name }

// Labels returns a copy of the labels in rank order.
func (s *Scale) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Rank returns the zero-based position of label. Unlike one-hot encoding there
// is no fallback: an absent label is an ErrUnknownOrdinalCategory.
func (s *Scale) Rank(label string) (int, error) {
	r, ok := s.rank[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q not in scale %q", ErrUnknownOrdinalCategory, label, s.name)
	}
	return r, nil
}
