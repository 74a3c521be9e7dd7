// Package entity defines the descriptors for everything simrun can launch:
// standalone applications, ensembles of applications expanded from parameter
// permutations, and in-memory feature stores.
//
// Entities are descriptions, not processes. Launchers turn them into steps
// and the job manager tracks the resulting jobs by entity name.
package entity

// Kind classifies an entity for job bookkeeping.
//
// The caller of jobmanager.AddJob decides the kind explicitly; nothing in
// the job manager inspects entity types.
type Kind string

const (
	KindApplication  Kind = "application"
	KindFeatureStore Kind = "feature_store"
)

// Entity is the minimal surface the job manager and launchers need from
// anything that can be launched.
type Entity interface {
	// Name is the logical entity name, unique within an experiment.
	Name() string

	// Type is a human-readable entity type label used in reports and logs.
	Type() string

	// RunSetting returns a launcher run setting by key (e.g. "out_file",
	// "err_file", "nodes"). Unknown keys return the empty string.
	RunSetting(key string) string
}
