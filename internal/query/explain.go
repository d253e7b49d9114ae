package query

// CandidateExplanation describes one plan considered during planning, for
// presentation in an ExplainResult.
type CandidateExplanation struct {
	Label    string
	Steps    []Step
	Cost     int
	Selected bool
}

// ExplainResult is Explain's non-mutating output: the validated spec, every
// candidate plan with its steps and cost, and a flag marking the selected
// one.
type ExplainResult struct {
	Spec       Spec
	Candidates []CandidateExplanation
}

// Explain runs the validate/enumerate/rewrite/cost stages and reports every
// candidate plan without ever calling an Executor; explaining a query must
// not execute the plan or touch storage.
func Explain(spec Spec, ctx PlanContext) (*ExplainResult, error) {
	candidates, err := BuildCandidates(spec, ctx)
	if err != nil {
		return nil, err
	}

	_, selectedIdx := Select(candidates)

	result := &ExplainResult{Spec: spec}
	for i, c := range candidates {
		result.Candidates = append(result.Candidates, CandidateExplanation{
			Label:    c.Label,
			Steps:    c.Steps,
			Cost:     c.Cost,
			Selected: i == selectedIdx,
		})
	}
	return result, nil
}
