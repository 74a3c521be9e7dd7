// Package manifest provides loading and validation of simrun experiment
// manifests.
//
// An experiment manifest is a YAML or JSON file that describes everything an
// experiment launches: applications (standalone or ensembles expanded from
// parameter permutations), an optional feature store, staged input files,
// and the launcher to run under.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	experiment:
//	  name: thermo-sweep
//	  launcher: slurm
//	applications:
//	  - name: atm
//	    exe: lmp
//	    ensemble:
//	      strategy: all_perm
//	      params:
//	        THERMO: ["10", "20"]
//	      exe_args:
//	        "-in": [["in.atm"]]
//	feature_store:
//	  nodes: 3
//	  ports: [6379]
package manifest

// Manifest represents a validated experiment manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Experiment configures experiment-wide settings.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	// Applications lists the programs to launch.
	Applications []ApplicationConfig `json:"applications,omitempty" yaml:"applications,omitempty"`

	// FeatureStore optionally describes an in-memory feature store to
	// launch alongside the applications.
	FeatureStore *FeatureStoreConfig `json:"feature_store,omitempty" yaml:"feature_store,omitempty"`
}

// ExperimentConfig configures experiment-wide settings.
type ExperimentConfig struct {
	// Name is the experiment name, used for run directory naming.
	Name string `json:"name" yaml:"name"`

	// Launcher selects the backend: "local", "slurm", or "pbs".
	// Default: "local".
	Launcher string `json:"launcher,omitempty" yaml:"launcher,omitempty"`

	// Path is the experiment root directory for staged runs.
	// Default: the manifest's directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ApplicationConfig describes one program, optionally expanded into an
// ensemble by a permutation strategy.
type ApplicationConfig struct {
	// Name is the entity name, unique within the experiment.
	Name string `json:"name" yaml:"name"`

	// Exe is the executable to run; resolved against PATH at launch.
	Exe string `json:"exe" yaml:"exe"`

	// ExeArgs are fixed command line arguments for a standalone run.
	// Ignored when Ensemble is set.
	ExeArgs []string `json:"exe_args,omitempty" yaml:"exe_args,omitempty"`

	// RunSettings are launcher run settings (e.g. nodes, tasks).
	RunSettings map[string]string `json:"run_settings,omitempty" yaml:"run_settings,omitempty"`

	// Ensemble expands this application into many members.
	Ensemble *EnsembleConfig `json:"ensemble,omitempty" yaml:"ensemble,omitempty"`

	// Files are input files staged into each run directory.
	Files FilesConfig `json:"files,omitempty" yaml:"files,omitempty"`
}

// EnsembleConfig configures parameter-permutation expansion.
type EnsembleConfig struct {
	// Strategy names a registered permutation strategy.
	// Default: "all_perm".
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// NPermutations caps the expansion; zero or negative means no cap.
	NPermutations int `json:"n_permutations,omitempty" yaml:"n_permutations,omitempty"`

	// Replicas duplicates every generated configuration. Default: 1.
	Replicas int `json:"replicas,omitempty" yaml:"replicas,omitempty"`

	// Params maps file parameter names to candidate values.
	Params map[string][]string `json:"params,omitempty" yaml:"params,omitempty"`

	// ExeArgs maps executable argument names to candidate argument
	// vectors.
	ExeArgs map[string][][]string `json:"exe_args,omitempty" yaml:"exe_args,omitempty"`
}

// FeatureStoreConfig describes a feature-store deployment.
type FeatureStoreConfig struct {
	// Name is the store's entity name. Default: "feature_store".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Nodes is the node count. Default: 1.
	Nodes int `json:"nodes,omitempty" yaml:"nodes,omitempty"`

	// Ports the store listens on. Default: [6379].
	Ports []int `json:"ports,omitempty" yaml:"ports,omitempty"`

	// Batch submits the store as one batch job instead of per-node steps.
	Batch bool `json:"batch,omitempty" yaml:"batch,omitempty"`
}

// FilesConfig lists input files staged into run directories.
type FilesConfig struct {
	// Copy are glob patterns (doublestar syntax) of files copied into the
	// run directory.
	Copy []string `json:"copy,omitempty" yaml:"copy,omitempty"`

	// Symlink are glob patterns of files symlinked into the run
	// directory.
	Symlink []string `json:"symlink,omitempty" yaml:"symlink,omitempty"`
}

// ApplyDefaults fills optional fields with their documented defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = "1.0"
	}
	if m.Experiment.Launcher == "" {
		m.Experiment.Launcher = "local"
	}
	for i := range m.Applications {
		app := &m.Applications[i]
		if app.Ensemble != nil {
			if app.Ensemble.Strategy == "" {
				app.Ensemble.Strategy = "all_perm"
			}
			if app.Ensemble.Replicas < 1 {
				app.Ensemble.Replicas = 1
			}
		}
	}
	if m.FeatureStore != nil {
		if m.FeatureStore.Name == "" {
			m.FeatureStore.Name = "feature_store"
		}
		if m.FeatureStore.Nodes < 1 {
			m.FeatureStore.Nodes = 1
		}
		if len(m.FeatureStore.Ports) == 0 {
			m.FeatureStore.Ports = []int{6379}
		}
	}
}
