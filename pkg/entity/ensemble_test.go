package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcforge/simrun/pkg/strategy"
)

var (
	params2x2 = map[string][]string{
		"SPAM": {"a", "b"},
		"EGGS": {"c", "d"},
	}
	exeArgs2x2 = map[string][][]string{
		"EXE":  {{"a"}, {"b", "c"}},
		"ARGS": {{"d"}, {"e", "f"}},
	}
)

func newTestEnsemble(t *testing.T, params map[string][]string, exeArgs map[string][][]string) *Ensemble {
	t.Helper()
	// "echo" resolves on any test machine.
	return NewEnsemble("test_ensemble", "echo", params, exeArgs, nil)
}

func TestEnsemble_ExpandAllPermutations(t *testing.T) {
	cases := []struct {
		name     string
		params   map[string][]string
		exeArgs  map[string][][]string
		maxPerms int
		replicas int
		want     int
	}{
		{"all_permutations", params2x2, exeArgs2x2, 30, 1, 16},
		{"no_exe_args", params2x2, nil, 30, 1, 4},
		{"no_file_params", nil, exeArgs2x2, 30, 1, 4},
		{"no_inputs_single_config", nil, nil, 30, 1, 1},
		{"limit_max_permutations", params2x2, exeArgs2x2, 8, 1, 8},
		{"replicate_all_permutations", params2x2, exeArgs2x2, 30, 2, 32},
	}

	reg := strategy.NewRegistry()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnsemble(t, tc.params, tc.exeArgs)
			e.NPermutations = tc.maxPerms
			e.Replicas = tc.replicas

			require.NoError(t, e.Expand(reg))
			assert.Equal(t, tc.want, e.Len())
		})
	}
}

func TestEnsemble_ExpandStepStrategy(t *testing.T) {
	e := newTestEnsemble(t, map[string][]string{
		"X": {"1", "2"},
		"Y": {"a", "b"},
	}, nil)
	e.Strategy = "step"

	require.NoError(t, e.Expand(strategy.NewRegistry()))
	require.Equal(t, 2, e.Len())

	first, ok := e.Member("test_ensemble_0")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"X": "1", "Y": "a"}, first.Params)
}

func TestEnsemble_ExpandUnknownStrategy(t *testing.T) {
	e := newTestEnsemble(t, params2x2, nil)
	e.Strategy = "THIS-STRATEGY-DNE"

	err := e.Expand(strategy.NewRegistry())
	require.Error(t, err)
	assert.True(t, strategy.IsConfigurationError(err))
}

func TestEnsemble_ReplicasGetIndependentParamCopies(t *testing.T) {
	e := newTestEnsemble(t, map[string][]string{"SPAM": {"eggs"}}, nil)
	e.Replicas = 4

	require.NoError(t, e.Expand(strategy.NewRegistry()))
	members := e.Members()
	require.Len(t, members, 4)

	members[0].Params["SPAM"] = "mutated"
	assert.Equal(t, "eggs", members[1].Params["SPAM"])
}

func TestEnsemble_AddDuplicateName(t *testing.T) {
	e := newTestEnsemble(t, nil, nil)
	app, err := NewApplication("dup", "echo", nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Add(app))
	err = e.Add(app)
	require.Error(t, err)
	assert.True(t, strategy.IsConfigurationError(err))
}

func TestNewApplication_MissingExecutable(t *testing.T) {
	_, err := NewApplication("app", "", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, strategy.IsConfigurationError(err))

	_, err = NewApplication("app", "this-binary-does-not-exist-anywhere", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, strategy.IsConfigurationError(err))
}

func TestFeatureStore_NodeNaming(t *testing.T) {
	fs := NewFeatureStore("store", 3, []int{6379}, false)
	nodes := fs.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "store_0", nodes[0].Name())
	assert.Equal(t, "store_2", nodes[2].Name())
}
