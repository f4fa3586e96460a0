// Package config loads a scheduling hierarchy from a YAML resource file,
// using the same apiVersion/kind/metadata/spec envelope cmd/virtqctl's
// apply command expects. The resource describes a tree of groups and leaf
// queues to attach to an engine.Engine rather than a workload to run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/virtq/bwf2q/internal/engine"
	"github.com/virtq/bwf2q/internal/entity"
)

const KindHierarchy = "SchedulerHierarchy"

// Resource is the generic envelope every virtqctl YAML file uses.
type Resource struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Metadata   Metadata      `yaml:"metadata"`
	Spec       HierarchySpec `yaml:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// HierarchySpec configures an Engine and the tree of groups/leaves
// attached to its root.
type HierarchySpec struct {
	NumClasses       int        `yaml:"numClasses"`
	MaxBudget        uint64     `yaml:"maxBudget"`
	StarvationWindow uint64     `yaml:"starvationWindow"`
	MinWeight        uint32     `yaml:"minWeight"`
	MaxWeight        uint32     `yaml:"maxWeight"`
	Groups           []GroupSpec `yaml:"groups,omitempty"`
	Leaves           []LeafSpec  `yaml:"leaves,omitempty"`
}

// GroupSpec describes a group entity, possibly containing nested groups
// and leaves of its own.
type GroupSpec struct {
	Name   string      `yaml:"name"`
	Weight uint32      `yaml:"weight"`
	Groups []GroupSpec `yaml:"groups,omitempty"`
	Leaves []LeafSpec  `yaml:"leaves,omitempty"`
}

// LeafSpec describes a leaf I/O queue: its weight and the priority class
// it starts in.
type LeafSpec struct {
	Name      string `yaml:"name"`
	Weight    uint32 `yaml:"weight"`
	PrioClass int    `yaml:"prioClass"`
}

// Load reads and parses a hierarchy resource file from path.
func Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var res Resource
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if res.Kind != KindHierarchy {
		return nil, fmt.Errorf("unsupported resource kind: %s", res.Kind)
	}
	if res.Spec.NumClasses <= 0 {
		return nil, fmt.Errorf("spec.numClasses must be positive")
	}
	return &res, nil
}

// Build constructs an Engine from the resource's spec and attaches every
// configured group and leaf beneath its root, returning the leaves by
// name so a caller (e.g. pkg/workload) can drive them.
func Build(res *Resource, params engine.Params) (*engine.Engine, map[string]*entity.Entity, error) {
	params.NumClasses = res.Spec.NumClasses
	params.MaxBudget = res.Spec.MaxBudget
	params.StarvationWindow = res.Spec.StarvationWindow
	params.MinWeight = res.Spec.MinWeight
	params.MaxWeight = res.Spec.MaxWeight

	eng := engine.New(params)
	leaves := make(map[string]*entity.Entity)

	if err := attachChildren(eng, nil, res.Spec.Groups, res.Spec.Leaves, res.Spec.NumClasses, res.Spec.MaxBudget, leaves); err != nil {
		return nil, nil, err
	}
	return eng, leaves, nil
}

func attachChildren(eng *engine.Engine, parent *entity.Entity, groups []GroupSpec, leafSpecs []LeafSpec, numClasses int, maxBudget uint64, leaves map[string]*entity.Entity) error {
	for _, ls := range leafSpecs {
		if _, exists := leaves[ls.Name]; exists {
			return fmt.Errorf("duplicate leaf name: %s", ls.Name)
		}
		leaf := entity.NewLeaf(ls.Name, ls.Weight)
		leaf.PrioClass = ls.PrioClass
		leaf.NewPrioClass = ls.PrioClass
		leaf.Budget = maxBudget
		eng.AttachChild(parent, leaf)
		leaves[ls.Name] = leaf
	}

	for _, gs := range groups {
		group := entity.NewGroup(gs.Name, gs.Weight, numClasses)
		eng.AttachChild(parent, group)
		if err := attachChildren(eng, group, gs.Groups, gs.Leaves, numClasses, maxBudget, leaves); err != nil {
			return err
		}
	}
	return nil
}
