// Package strategy implements the parameter-permutation engine that expands
// experiment parameter and executable-argument value lists into concrete run
// configurations.
//
// Strategies are pure functions held in an explicit Registry constructed at
// startup; there is no package-global strategy table. User-supplied
// strategies are wrapped so their failures surface as a single typed error
// instead of propagating raw panics into the caller.
package strategy

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// ParamSet is one fully resolved run configuration: a mapping of file
// parameters to concrete values paired with a mapping of executable
// arguments to concrete argument vectors.
//
// ParamSets are value objects; callers must not mutate the maps after a
// strategy returns them.
type ParamSet struct {
	FileParams map[string]string
	ExeArgs    map[string][]string
}

// Func is the signature every permutation strategy implements.
//
// params maps a file parameter name to its candidate values. exeArgs maps an
// executable argument name to its candidate argument vectors. nPermutations
// caps the number of returned configurations; zero or negative means no cap.
type Func func(params map[string][]string, exeArgs map[string][][]string, nPermutations int) ([]ParamSet, error)

// Registry resolves permutation strategies by name.
//
// A Registry is immutable after construction apart from Register, and is
// passed by reference to whatever component needs resolution.
type Registry struct {
	strategies map[string]Func
}

// NewRegistry returns a Registry populated with the built-in strategies
// "all_perm", "step", and "random".
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Func)}
	// Built-in registration cannot collide.
	_ = r.Register("all_perm", AllPermutations)
	_ = r.Register("step", StepValues)
	_ = r.Register("random", RandomPermutations)
	return r
}

// Register adds a named strategy. Registering a name twice is a
// configuration error.
func (r *Registry) Register(name string, fn Func) error {
	if _, ok := r.strategies[name]; ok {
		return &ConfigurationError{
			Op:  "register strategy",
			Msg: fmt.Sprintf("a strategy with the name %q has already been registered", name),
		}
	}
	r.strategies[name] = fn
	return nil
}

// Resolve returns the strategy registered under name.
//
// An unknown name is a configuration error whose message enumerates every
// known strategy so the caller can see what is available.
func (r *Registry) Resolve(name string) (Func, error) {
	fn, ok := r.strategies[name]
	if !ok {
		return nil, &ConfigurationError{
			Op:  "resolve strategy",
			Msg: fmt.Sprintf("no permutation strategy named %q; known strategies: %s", name, strings.Join(r.Names(), ", ")),
		}
	}
	return fn, nil
}

// Names returns the sorted names of all registered strategies.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wrap guards a user-supplied strategy function.
//
// Any panic or error raised by fn, and any malformed result (nil ParamSet
// maps), is normalized into a UserStrategyError carrying the given identity
// so extension failures never propagate raw into the run loop.
func Wrap(identity string, fn Func) Func {
	return func(params map[string][]string, exeArgs map[string][][]string, n int) (out []ParamSet, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				out = nil
				err = &UserStrategyError{Strategy: identity, Err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		out, err = fn(params, exeArgs, n)
		if err != nil {
			return nil, &UserStrategyError{Strategy: identity, Err: err}
		}
		for _, ps := range out {
			if ps.FileParams == nil || ps.ExeArgs == nil {
				return nil, &UserStrategyError{
					Strategy: identity,
					Err:      fmt.Errorf("strategy returned a malformed parameter set"),
				}
			}
		}
		return out, nil
	}
}

// AllPermutations is the "all_perm" strategy: the cross product of all
// parameter value lists crossed with the cross product of all exe-arg value
// lists, truncated to nPermutations entries when positive.
//
// Zero parameters and zero exe-args yield exactly one empty configuration
// (the product of zero sequences is a single empty tuple); "no-configuration"
// experiments rely on this.
func AllPermutations(params map[string][]string, exeArgs map[string][][]string, nPermutations int) ([]ParamSet, error) {
	paramMaps := crossParams(params)
	exeArgMaps := crossExeArgs(exeArgs)

	out := make([]ParamSet, 0, len(paramMaps)*len(exeArgMaps))
	for _, fp := range paramMaps {
		for _, ea := range exeArgMaps {
			out = append(out, ParamSet{FileParams: fp, ExeArgs: ea})
			if nPermutations > 0 && len(out) == nPermutations {
				return out, nil
			}
		}
	}
	return out, nil
}

// StepValues is the "step" strategy: values are zipped positionally, one
// configuration per index, rather than crossed.
//
// All parameter value lists must share one length, and likewise all exe-arg
// value lists; the shorter of the two index sets bounds the output. A length
// mismatch within params or within exe-args is a configuration error.
func StepValues(params map[string][]string, exeArgs map[string][][]string, nPermutations int) ([]ParamSet, error) {
	paramSteps, err := zipParams(params)
	if err != nil {
		return nil, err
	}
	exeArgSteps, err := zipExeArgs(exeArgs)
	if err != nil {
		return nil, err
	}

	steps := len(paramSteps)
	if len(params) == 0 {
		steps = len(exeArgSteps)
	} else if len(exeArgs) > 0 && len(exeArgSteps) < steps {
		steps = len(exeArgSteps)
	}
	if nPermutations > 0 && nPermutations < steps {
		steps = nPermutations
	}

	out := make([]ParamSet, 0, steps)
	for i := 0; i < steps; i++ {
		fp := map[string]string{}
		if i < len(paramSteps) {
			fp = paramSteps[i]
		}
		ea := map[string][]string{}
		if i < len(exeArgSteps) {
			ea = exeArgSteps[i]
		}
		out = append(out, ParamSet{FileParams: fp, ExeArgs: ea})
	}
	return out, nil
}

// RandomPermutations is the "random" strategy: the full cross product,
// then a uniform sample of nPermutations configurations without
// replacement. With nPermutations <= 0 or larger than the product, every
// configuration is returned.
func RandomPermutations(params map[string][]string, exeArgs map[string][][]string, nPermutations int) ([]ParamSet, error) {
	all, err := AllPermutations(params, exeArgs, 0)
	if err != nil {
		return nil, err
	}
	if nPermutations <= 0 || nPermutations >= len(all) {
		return all, nil
	}
	idx := rand.Perm(len(all))[:nPermutations]
	out := make([]ParamSet, 0, nPermutations)
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out, nil
}

// crossParams expands the cross product of parameter value lists into one
// map per combination. Map iteration order is not deterministic, so keys are
// sorted first to make output ordering stable.
func crossParams(params map[string][]string) []map[string]string {
	keys := sortedKeys(params)
	out := []map[string]string{{}}
	for _, key := range keys {
		values := params[key]
		next := make([]map[string]string, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				m := make(map[string]string, len(base)+1)
				for k, bv := range base {
					m[k] = bv
				}
				m[key] = v
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}

func crossExeArgs(exeArgs map[string][][]string) []map[string][]string {
	keys := make([]string, 0, len(exeArgs))
	for k := range exeArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string][]string{{}}
	for _, key := range keys {
		values := exeArgs[key]
		next := make([]map[string][]string, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				m := make(map[string][]string, len(base)+1)
				for k, bv := range base {
					m[k] = bv
				}
				m[key] = v
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}

// zipParams pairs the i-th value of every parameter list into the i-th map.
func zipParams(params map[string][]string) ([]map[string]string, error) {
	keys := sortedKeys(params)
	if len(keys) == 0 {
		return nil, nil
	}
	steps := len(params[keys[0]])
	for _, key := range keys {
		if len(params[key]) != steps {
			return nil, &ConfigurationError{
				Op:  "step strategy",
				Msg: fmt.Sprintf("parameter %q has %d values, expected %d to match the other parameters", key, len(params[key]), steps),
			}
		}
	}
	out := make([]map[string]string, steps)
	for i := 0; i < steps; i++ {
		m := make(map[string]string, len(keys))
		for _, key := range keys {
			m[key] = params[key][i]
		}
		out[i] = m
	}
	return out, nil
}

func zipExeArgs(exeArgs map[string][][]string) ([]map[string][]string, error) {
	keys := make([]string, 0, len(exeArgs))
	for k := range exeArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return nil, nil
	}
	steps := len(exeArgs[keys[0]])
	for _, key := range keys {
		if len(exeArgs[key]) != steps {
			return nil, &ConfigurationError{
				Op:  "step strategy",
				Msg: fmt.Sprintf("exe arg %q has %d values, expected %d to match the other exe args", key, len(exeArgs[key]), steps),
			}
		}
	}
	out := make([]map[string][]string, steps)
	for i := 0; i < steps; i++ {
		m := make(map[string][]string, len(keys))
		for _, key := range keys {
			m[key] = exeArgs[key][i]
		}
		out[i] = m
	}
	return out, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
