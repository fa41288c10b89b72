// Package registry declares the canonical schema for the summary objects
// kept in the coordination store. Producers and consumers agree on the key
// layout and attribute sets through this registry instead of shared code.
package registry

import (
	"errors"
	"fmt"
)

// Version is the schema version declared by this registry build. Consumers
// compare their expected version against it before reading or writing.
const Version = "0.3"

// AttrType declares the type of an object attribute.
type AttrType string

const (
	AttrString AttrType = "string"
	AttrInt    AttrType = "int"
	AttrMap    AttrType = "map"
	AttrList   AttrType = "list"
)

// Attribute is a single typed attribute of a summary object.
type Attribute struct {
	Name string   `json:"name"`
	Type AttrType `json:"type"`
}

// ObjectDef describes one summary object: its attribute set, the key
// layout used to store it, and a help string for humans.
type ObjectDef struct {
	// Name of the object, for example "NodeSummary".
	Name string `json:"name"`

	// Attributes in declaration order.
	Attributes []Attribute `json:"attrs"`

	// KeyAttr names the attribute whose value parameterizes the
	// singular key. It must be non-empty and stable for the lifetime
	// of an instance.
	KeyAttr string `json:"key_attr"`

	// ListKey is the prefix under which all instances are enumerable.
	ListKey string `json:"list"`

	// Help is a human readable description of the object.
	Help string `json:"help"`

	// Enabled permits objects to be declared ahead of their first use.
	Enabled bool `json:"enabled"`
}

// Key derives the singular storage key for the instance identified by id.
func (d ObjectDef) Key(id string) (string, error) {
	if id == "" {
		return "", &KeyDerivationError{Object: d.Name, Attr: d.KeyAttr}
	}
	return d.ListKey + "/" + id, nil
}

// Registry is an immutable set of object definitions plus the schema
// version they belong to.
type Registry struct {
	version string
	objects map[string]ObjectDef
	order   []string
}

// Object names declared by this registry.
const (
	ObjectNodeSummary    = "NodeSummary"
	ObjectClusterSummary = "ClusterSummary"
	ObjectSystemSummary  = "SystemSummary"
)

// Listing keys for the declared objects. The key layout is part of the
// external interface and must not change between versions carelessly.
const (
	NodeSummaryListKey    = "monitoring/summary/nodes"
	ClusterSummaryListKey = "monitoring/summary/clusters"
	SystemSummaryListKey  = "monitoring/summary/system"
)

// New constructs the registry for schema version 0.3.
func New() *Registry {
	defs := []ObjectDef{
		{
			Name: ObjectNodeSummary,
			Attributes: []Attribute{
				{Name: "name", Type: AttrString},
				{Name: "node_id", Type: AttrString},
				{Name: "status", Type: AttrString},
				{Name: "role", Type: AttrString},
				{Name: "cluster_name", Type: AttrString},
				{Name: "cpu_usage", Type: AttrMap},
				{Name: "memory_usage", Type: AttrMap},
				{Name: "storage_usage", Type: AttrMap},
				{Name: "alert_count", Type: AttrInt},
			},
			KeyAttr: "node_id",
			ListKey: NodeSummaryListKey,
			Help:    "Node wise performance summary",
			Enabled: true,
		},
		{
			Name: ObjectClusterSummary,
			Attributes: []Attribute{
				{Name: "utilization", Type: AttrMap},
				{Name: "hosts_count", Type: AttrMap},
				{Name: "node_summaries", Type: AttrList},
				{Name: "sds_det", Type: AttrMap},
				{Name: "sds_type", Type: AttrString},
				{Name: "cluster_id", Type: AttrString},
			},
			KeyAttr: "cluster_id",
			ListKey: ClusterSummaryListKey,
			Help:    "Cluster wise performance summary",
			Enabled: true,
		},
		{
			Name: ObjectSystemSummary,
			Attributes: []Attribute{
				{Name: "utilization", Type: AttrMap},
				{Name: "hosts_count", Type: AttrMap},
				{Name: "sds_det", Type: AttrMap},
				{Name: "sds_type", Type: AttrString},
				{Name: "cluster_count", Type: AttrMap},
			},
			KeyAttr: "sds_type",
			ListKey: SystemSummaryListKey,
			Help:    "System wide performance summary per sds type",
			Enabled: true,
		},
	}

	r := &Registry{
		version: Version,
		objects: make(map[string]ObjectDef, len(defs)),
		order:   make([]string, 0, len(defs)),
	}
	for _, def := range defs {
		r.objects[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	return r
}

// Version returns the declared schema version.
func (r *Registry) Version() string {
	return r.version
}

// Lookup returns the definition of the named object.
func (r *Registry) Lookup(name string) (ObjectDef, error) {
	def, ok := r.objects[name]
	if !ok {
		return ObjectDef{}, fmt.Errorf("object %q: %w", name, ErrUnknownObject)
	}
	return def, nil
}

// Objects returns all definitions in declaration order.
func (r *Registry) Objects() []ObjectDef {
	defs := make([]ObjectDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.objects[name])
	}
	return defs
}

// KeyFor derives the singular storage key of the named object for the
// given identifying attribute value.
func (r *Registry) KeyFor(object, id string) (string, error) {
	def, err := r.Lookup(object)
	if err != nil {
		return "", err
	}
	return def.Key(id)
}

// CheckVersion verifies that a consumer's expected schema version matches
// the registry's declared one. The policy is exact match; any difference
// is reported as a VersionMismatchError.
func (r *Registry) CheckVersion(expected string) error {
	if expected != r.version {
		return &VersionMismatchError{Expected: expected, Actual: r.version}
	}
	return nil
}

// ErrUnknownObject is returned when a schema lookup names an object the
// registry does not declare.
var ErrUnknownObject = errors.New("unknown schema object")

// KeyDerivationError is returned when the identifying attribute needed to
// derive a singular key is missing or empty.
type KeyDerivationError struct {
	Object string
	Attr   string
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("object %s: identifying attribute %s is empty", e.Object, e.Attr)
}

// VersionMismatchError is returned when a consumer's expected schema
// version differs from the registry's declared version.
type VersionMismatchError struct {
	Expected string
	Actual   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("schema version mismatch: consumer expects %s, registry declares %s", e.Expected, e.Actual)
}
