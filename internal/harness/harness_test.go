package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probcirc/circ/internal/loader"
)

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "linear-marginal", scenarios[0].Name)
	assert.Equal(t, "quad-structure", scenarios[1].Name)
}

func TestScenarioExpectations(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			require.Contains(t, result.Circuits, loader.BaseName)
			assert.Len(t, result.Pipeline.Plans, len(result.Circuits))
		})
	}
}

func TestLinearMarginalGolden(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "linear-marginal.yaml"))
	require.NoError(t, err)
	RunWithGolden(t, s)
}

func TestExpectationFailure(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "linear-marginal.yaml"))
	require.NoError(t, err)
	wrong := 99
	s.Expect = append(s.Expect, CircuitExpect{Circuit: "base", Dense: &wrong})

	_, err = Run(s)
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "dense", ae.Field)
	assert.Equal(t, 99, ae.Expected)
	assert.Equal(t, 3, ae.Actual)
}

func TestExpectationUnknownCircuit(t *testing.T) {
	s := &Scenario{
		Name: "unknown-circuit",
		Pipeline: loader.PipelineSpec{
			Graph: loader.GraphSpec{Template: "linear", NumVars: 2},
		},
		Expect: []CircuitExpect{{Circuit: "ghost"}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCircuitNamesBaseFirst(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "linear-marginal.yaml"))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "marginal"}, result.CircuitNames())
}

func TestLoadScenarioRejectsNameless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("description: no name\n"), 0o644))
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}
