package entity

import (
	"fmt"
	"sort"

	"github.com/hpcforge/simrun/pkg/strategy"
)

// Ensemble is a group of applications generated from parameter value lists
// by a permutation strategy. Members are named <ensemble>_<index>.
type Ensemble struct {
	name string

	// Exe and run settings shared by every member.
	Exe         string
	RunSettings map[string]string

	// Params and ExeArgs hold the candidate value lists handed to the
	// permutation strategy.
	Params  map[string][]string
	ExeArgs map[string][][]string

	// Strategy names a registered strategy; NPermutations caps the
	// expansion (<= 0 means no cap).
	Strategy      string
	NPermutations int

	// Replicas duplicates every generated configuration this many times.
	// Values below 1 are treated as 1.
	Replicas int

	members map[string]*Application
	order   []string
}

// NewEnsemble builds an empty ensemble descriptor.
func NewEnsemble(name, exe string, params map[string][]string, exeArgs map[string][][]string, runSettings map[string]string) *Ensemble {
	if runSettings == nil {
		runSettings = map[string]string{}
	}
	return &Ensemble{
		name:        name,
		Exe:         exe,
		RunSettings: runSettings,
		Params:      params,
		ExeArgs:     exeArgs,
		Strategy:    "all_perm",
		members:     make(map[string]*Application),
	}
}

// Name implements Entity.
func (e *Ensemble) Name() string { return e.name }

// Type implements Entity.
func (e *Ensemble) Type() string { return "ensemble" }

// RunSetting implements Entity.
func (e *Ensemble) RunSetting(key string) string { return e.RunSettings[key] }

// Add inserts a member application. A duplicate member name is a
// configuration error.
func (e *Ensemble) Add(app *Application) error {
	if _, exists := e.members[app.Name()]; exists {
		return &strategy.ConfigurationError{
			Op:  "add ensemble member",
			Msg: fmt.Sprintf("an application named %q already exists in ensemble %q", app.Name(), e.name),
		}
	}
	e.members[app.Name()] = app
	e.order = append(e.order, app.Name())
	return nil
}

// Member returns a member application by name.
func (e *Ensemble) Member(name string) (*Application, bool) {
	app, ok := e.members[name]
	return app, ok
}

// Members returns member applications in insertion order.
func (e *Ensemble) Members() []*Application {
	out := make([]*Application, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.members[name])
	}
	return out
}

// Len returns the member count.
func (e *Ensemble) Len() int { return len(e.members) }

// Expand resolves the ensemble's strategy against reg and populates the
// member set with one application per generated ParamSet.
//
// Each member gets the flattened exe args for its configuration: argument
// vectors are appended in the sorted key order produced by the strategy.
func (e *Ensemble) Expand(reg *strategy.Registry) error {
	fn, err := reg.Resolve(e.Strategy)
	if err != nil {
		return err
	}
	paramSets, err := fn(e.Params, e.ExeArgs, e.NPermutations)
	if err != nil {
		return err
	}

	replicas := e.Replicas
	if replicas < 1 {
		replicas = 1
	}

	i := 0
	for _, ps := range paramSets {
		for r := 0; r < replicas; r++ {
			args := flattenExeArgs(ps.ExeArgs)
			app, err := NewApplication(
				fmt.Sprintf("%s_%d", e.name, i),
				e.Exe,
				args,
				copyParams(ps.FileParams),
				copySettings(e.RunSettings),
			)
			if err != nil {
				return err
			}
			if err := e.Add(app); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

// copyParams deep-copies a configuration so replicas never share parameter
// maps.
func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func flattenExeArgs(exeArgs map[string][]string) []string {
	keys := make([]string, 0, len(exeArgs))
	for k := range exeArgs {
		keys = append(keys, k)
	}
	// Stable ordering keeps generated command lines reproducible.
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		args = append(args, k)
		args = append(args, exeArgs[k]...)
	}
	return args
}

func copySettings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
