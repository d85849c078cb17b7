package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/probcirc/circ/internal/backend"
)

// RenderPipeline produces the deterministic plan dump of a scenario
// result, in pipeline order with the scenario's circuit names.
func RenderPipeline(r *Result) string {
	named := make([]backend.NamedPlan, len(r.Pipeline.Plans))
	for i, plan := range r.Pipeline.Plans {
		named[i] = backend.NamedPlan{Name: r.nameOf(plan.Circuit), Plan: plan}
	}
	return backend.RenderPlans(named)
}

// RunWithGolden runs a scenario and compares the pipeline dump against
// testdata/<scenario name>.golden. Regenerate with go test -update.
func RunWithGolden(t *testing.T, s *Scenario) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("running scenario %s: %v", s.Name, err)
	}

	g := goldie.New(t)
	g.Assert(t, s.Name, []byte(RenderPipeline(result)))
}
