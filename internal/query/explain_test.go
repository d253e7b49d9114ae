package query

import "testing"

func TestExplainMarksSelectedCandidateWithoutExecuting(t *testing.T) {
	spec := Spec{Kind: KindTraversal, StartID: "a", EndID: "z", MaxDepth: 5}

	result, err := Explain(spec, PlanContext{HasTraversalIndex: true})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if len(result.Candidates) != 3 {
		t.Fatalf("Explain() = %d candidates, want 3", len(result.Candidates))
	}

	selectedCount := 0
	var selectedLabel string
	for _, c := range result.Candidates {
		if c.Selected {
			selectedCount++
			selectedLabel = c.Label
		}
	}
	if selectedCount != 1 {
		t.Fatalf("Explain() marked %d candidates selected, want exactly 1", selectedCount)
	}
	if selectedLabel != "index_based" {
		t.Errorf("Explain() selected = %q, want index_based (cheapest)", selectedLabel)
	}
}

func TestExplainRejectsInvalidSpec(t *testing.T) {
	if _, err := Explain(Spec{Kind: KindNode}, PlanContext{}); err == nil {
		t.Fatal("Explain(invalid spec) error = nil, want validation error")
	}
}
