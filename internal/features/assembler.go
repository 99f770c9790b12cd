package features

import (
	"fmt"
	"strings"
)

// OneHotGroup one-hot encodes a categorical field under Prefix.
type OneHotGroup struct {
	Field      string
	Prefix     string
	Universe   *Universe
	Normalizer Normalizer
}

// OrdinalField writes the rank of a categorical field to Column.
type OrdinalField struct {
	Field  string
	Column string
	Scale  *Scale
}

// LearnedField writes a target-encoded value of Field to Column.
type LearnedField struct {
	Field      string
	Column     string
	Normalizer Normalizer
	Encoder    TargetEncoder
}

// Plan is the static description of how one model's feature record is built.
type Plan struct {
	Name        string
	Schema      []string
	Passthrough []string
	OneHot      []OneHotGroup
	Ordinal     []OrdinalField
	Learned     []LearnedField
}

// Fallback records a one-hot group that degraded to all zeros.
type Fallback struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Token string `json:"token"`
}

// Report describes the non-fatal outcomes of one Assemble call.
type Report struct {
	Fallbacks []Fallback `json:"fallbacks,omitempty"`
}

// Assembler builds schema-ordered feature vectors from observations. It is
// immutable after NewAssembler and safe for concurrent use.
type Assembler struct {
	plan   Plan
	schema []string
}

// NewAssembler checks the plan once, up front: every key a group can emit is
// enumerated, and a key claimed by two groups is an ErrSchemaConflict. Schema
// columns that no group can produce are rejected as ErrInvalidPlan.
func NewAssembler(plan Plan) (*Assembler, error) {
	if len(plan.Schema) == 0 {
		return nil, fmt.Errorf("%w: %s: empty schema", ErrInvalidPlan, plan.Name)
	}

	columns := make(map[string]struct{}, len(plan.Schema))
	for _, c := range plan.Schema {
		if _, dup := columns[c]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate schema column %q", ErrInvalidPlan, plan.Name, c)
		}
		columns[c] = struct{}{}
	}

	owners := make(map[string]string)
	claim := func(key, owner string) error {
		if prev, taken := owners[key]; taken {
			return fmt.Errorf("%w: %s: key %q emitted by %s and %s", ErrSchemaConflict, plan.Name, key, prev, owner)
		}
		owners[key] = owner
		return nil
	}

	for _, f := range plan.Passthrough {
		if err := claim(f, "passthrough"); err != nil {
			return nil, err
		}
	}
	for _, g := range plan.OneHot {
		if g.Universe == nil || g.Field == "" || g.Prefix == "" {
			return nil, fmt.Errorf("%w: %s: one-hot group %q is incomplete", ErrInvalidPlan, plan.Name, g.Field)
		}
		for _, k := range g.Universe.Keys(g.Prefix) {
			if err := claim(k, "one-hot "+g.Field); err != nil {
				return nil, err
			}
		}
	}
	for _, o := range plan.Ordinal {
		if o.Scale == nil || o.Field == "" || o.Column == "" {
			return nil, fmt.Errorf("%w: %s: ordinal field %q is incomplete", ErrInvalidPlan, plan.Name, o.Field)
		}
		if err := claim(o.Column, "ordinal "+o.Field); err != nil {
			return nil, err
		}
	}
	for _, l := range plan.Learned {
		if l.Encoder == nil || l.Field == "" || l.Column == "" {
			return nil, fmt.Errorf("%w: %s: learned field %q is incomplete", ErrInvalidPlan, plan.Name, l.Field)
		}
		if err := claim(l.Column, "learned "+l.Field); err != nil {
			return nil, err
		}
	}

	var orphans []string
	for _, c := range plan.Schema {
		if _, ok := owners[c]; !ok {
			orphans = append(orphans, c)
		}
	}
	if len(orphans) > 0 {
		return nil, fmt.Errorf("%w: %s: no group produces %s", ErrInvalidPlan, plan.Name, strings.Join(orphans, ", "))
	}

	return &Assembler{
		plan:   plan,
		schema: append([]string(nil), plan.Schema...),
	}, nil
}

// Name returns the plan name.
func (a *Assembler) Name() string { return a.plan.Name }

// Schema returns a copy of the column order.
func (a *Assembler) Schema() []string {
	return append([]string(nil), a.schema...)
}

// Assemble encodes obs and returns the feature vector in schema order.
//
// One-hot groups whose label normalizes outside the universe degrade to all
// zeros and are listed in the Report. Unknown ordinal labels, encoder errors
// and absent inputs or columns fail the call.
func (a *Assembler) Assemble(obs Observation) (Vector, Report, error) {
	var report Report
	merged := make(map[string]float64, len(a.schema))

	for _, f := range a.plan.Passthrough {
		if v, ok := obs.Numbers[f]; ok {
			merged[f] = v
		}
	}

	for _, g := range a.plan.OneHot {
		label, ok := obs.Labels[g.Field]
		if !ok {
			return Vector{}, report, fmt.Errorf("%w: field %q", ErrMissingFeature, g.Field)
		}
		token := g.Normalizer.Apply(label)
		oh := Encode(token, g.Universe, g.Prefix)
		if oh.Outcome == FallbackZero {
			report.Fallbacks = append(report.Fallbacks, Fallback{Field: g.Field, Label: label, Token: token})
		}
		for i, k := range oh.Keys {
			merged[k] = oh.Values[i]
		}
	}

	for _, o := range a.plan.Ordinal {
		label, ok := obs.Labels[o.Field]
		if !ok {
			return Vector{}, report, fmt.Errorf("%w: field %q", ErrMissingFeature, o.Field)
		}
		rank, err := o.Scale.Rank(label)
		if err != nil {
			return Vector{}, report, fmt.Errorf("field %q: %w", o.Field, err)
		}
		merged[o.Column] = float64(rank)
	}

	for _, l := range a.plan.Learned {
		raw, ok := obs.Value(l.Field)
		if !ok {
			return Vector{}, report, fmt.Errorf("%w: field %q", ErrMissingFeature, l.Field)
		}
		if s, isLabel := raw.(string); isLabel {
			raw = l.Normalizer.Apply(s)
		}
		v, err := Lookup(l.Encoder, raw)
		if err != nil {
			return Vector{}, report, fmt.Errorf("field %q: %w", l.Field, err)
		}
		merged[l.Column] = v
	}

	vec := Vector{
		Columns: a.Schema(),
		Values:  make([]float64, len(a.schema)),
	}
	for i, c := range a.schema {
		v, ok := merged[c]
		if !ok {
			return Vector{}, report, fmt.Errorf("%w: column %q", ErrMissingFeature, c)
		}
		vec.Values[i] = v
	}
	return vec, report, nil
}
