package rubric

import (
	"context"
	"testing"
)

func sampleTemplate() Template {
	return Template{
		ID:        "t1",
		Name:      "Support QA v2",
		Version:   2,
		IsDefault: true,
		Criteria: []Criterion{
			{ID: "greeting", Name: "Greeting", Dimension: DimensionCommunication},
			{ID: "disclosure", Name: "Recording disclosure", Dimension: DimensionCompliance, Weight: 2},
			{ID: "closing", Name: "Closing", Dimension: DimensionCommunication},
		},
	}
}

func TestDimensionMapAndWeights(t *testing.T) {
	tpl := sampleTemplate()

	dm := tpl.DimensionMap()
	if got := len(dm[DimensionCommunication]); got != 2 {
		t.Fatalf("expected 2 communication criteria, got %d", got)
	}
	if got := len(dm[DimensionCompliance]); got != 1 {
		t.Fatalf("expected 1 compliance criterion, got %d", got)
	}
	if _, ok := dm[DimensionEmpathy]; ok {
		t.Fatalf("empty dimensions must not appear in the map")
	}

	w := tpl.Weights()
	if w["greeting"] != 1 {
		t.Fatalf("unset weight should default to 1, got %v", w["greeting"])
	}
	if w["disclosure"] != 2 {
		t.Fatalf("expected weight 2, got %v", w["disclosure"])
	}
}

func TestDimensionValid(t *testing.T) {
	for _, d := range Dimensions() {
		if !d.Valid() {
			t.Fatalf("expected %s to be valid", d)
		}
	}
	if Dimension("speed").Valid() {
		t.Fatalf("unknown dimension must be invalid")
	}
}

func TestMemoryRepo_DefaultLookup(t *testing.T) {
	ctx := context.Background()

	repo := NewMemoryRepo()
	if _, err := repo.GetDefault(ctx); err != ErrNoDefaultTemplate {
		t.Fatalf("expected ErrNoDefaultTemplate, got %v", err)
	}

	repo.Put(sampleTemplate())
	tpl, err := repo.GetDefault(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.ID != "t1" {
		t.Fatalf("unexpected template %q", tpl.ID)
	}

	if _, err := repo.GetByID(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
