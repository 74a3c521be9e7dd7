package entity

import "fmt"

// FeatureStoreNode is one node of an in-memory feature store.
//
// Hosts are unknown at description time; the controller records them once
// the launcher confirms where the node landed.
type FeatureStoreNode struct {
	name string

	// Ports the node listens on.
	Ports []int

	// Host is the machine the node was placed on, set after launch.
	Host string

	runSettings map[string]string
}

// NewFeatureStoreNode builds a node descriptor.
func NewFeatureStoreNode(name string, ports []int, runSettings map[string]string) *FeatureStoreNode {
	if runSettings == nil {
		runSettings = map[string]string{}
	}
	return &FeatureStoreNode{name: name, Ports: ports, runSettings: runSettings}
}

// Name implements Entity.
func (n *FeatureStoreNode) Name() string { return n.name }

// Type implements Entity.
func (n *FeatureStoreNode) Type() string { return "feature store node" }

// RunSetting implements Entity.
func (n *FeatureStoreNode) RunSetting(key string) string { return n.runSettings[key] }

// SetRunSetting records a launcher run setting for the node.
func (n *FeatureStoreNode) SetRunSetting(key, value string) {
	n.runSettings[key] = value
}

// FeatureStore describes a whole feature-store deployment.
//
// In batch mode the store launches as one step whose hosts are assigned by
// the workload manager; otherwise each node launches individually and
// carries its own host.
type FeatureStore struct {
	name string

	// Batch is true when the store is submitted as a single batch job.
	Batch bool

	// Ports shared by every node.
	Ports []int

	// Hosts assigned by the workload manager in batch mode.
	Hosts []string

	nodes []*FeatureStoreNode
}

// NewFeatureStore builds a store of n nodes named <name>_<i>.
func NewFeatureStore(name string, nodeCount int, ports []int, batch bool) *FeatureStore {
	fs := &FeatureStore{name: name, Batch: batch, Ports: ports}
	for i := 0; i < nodeCount; i++ {
		fs.nodes = append(fs.nodes, NewFeatureStoreNode(fmt.Sprintf("%s_%d", name, i), ports, nil))
	}
	return fs
}

// Name implements Entity.
func (fs *FeatureStore) Name() string { return fs.name }

// Type implements Entity.
func (fs *FeatureStore) Type() string { return "feature store" }

// RunSetting implements Entity.
func (fs *FeatureStore) RunSetting(string) string { return "" }

// Nodes returns the store's node descriptors.
func (fs *FeatureStore) Nodes() []*FeatureStoreNode { return fs.nodes }
