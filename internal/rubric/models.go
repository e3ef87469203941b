package rubric

import (
	"errors"
	"time"
)

// Dimension is one of the fixed quality axes criteria aggregate into.
type Dimension string

const (
	DimensionCommunication Dimension = "communication"
	DimensionCompliance    Dimension = "compliance"
	DimensionAccuracy      Dimension = "accuracy"
	DimensionTone          Dimension = "tone"
	DimensionEmpathy       Dimension = "empathy"
	DimensionResolution    Dimension = "resolution"
)

// Dimensions lists the closed set in stable order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionCommunication,
		DimensionCompliance,
		DimensionAccuracy,
		DimensionTone,
		DimensionEmpathy,
		DimensionResolution,
	}
}

func (d Dimension) Valid() bool {
	switch d {
	case DimensionCommunication, DimensionCompliance, DimensionAccuracy,
		DimensionTone, DimensionEmpathy, DimensionResolution:
		return true
	default:
		return false
	}
}

// Criterion is one rubric item evaluated against a transcript.
// Weight 0 means "unset"; scoring treats it as 1.
type Criterion struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Dimension   Dimension `json:"dimension" db:"dimension"`
	Weight      float64   `json:"weight,omitempty" db:"weight"`
}

func (c Criterion) EffectiveWeight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// Template is a named, versioned rubric: an ordered list of criteria.
// Exactly one template is marked default at a time; the owner of that flag is
// outside this core, but audits rely on a single well-defined default existing.
type Template struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Version   int         `json:"version" db:"version"`
	IsDefault bool        `json:"is_default" db:"is_default"`
	Criteria  []Criterion `json:"criteria"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

var (
	ErrNotFound          = errors.New("rubric: template not found")
	ErrNoDefaultTemplate = errors.New("rubric: no default template configured")
)

// DimensionMap groups criterion ids by their dimension tag.
func (t Template) DimensionMap() map[Dimension][]string {
	out := make(map[Dimension][]string)
	for _, c := range t.Criteria {
		out[c.Dimension] = append(out[c.Dimension], c.ID)
	}
	return out
}

// CriterionIndex maps criterion id to its definition for verdict validation.
func (t Template) CriterionIndex() map[string]Criterion {
	out := make(map[string]Criterion, len(t.Criteria))
	for _, c := range t.Criteria {
		out[c.ID] = c
	}
	return out
}

// Weights maps criterion id to its effective weight.
func (t Template) Weights() map[string]float64 {
	out := make(map[string]float64, len(t.Criteria))
	for _, c := range t.Criteria {
		out[c.ID] = c.EffectiveWeight()
	}
	return out
}
