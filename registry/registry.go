// Package registry implements TypeRegistry, the process-wide index of
// subtype-id→struct and struct→extension-id→field mappings described by
// spec §4.4. Both indexes are stored in ordered B-trees (tidwall/btree)
// rather than plain maps, so iterating a registry (e.g. Subtypes)
// produces the same order on every run (spec §8 "Analyzer is
// deterministic").
package registry

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/codaschema/coda/schema"
)

// Registry is a TypeRegistry instance (spec §4.4). Registries are built
// during analysis and read afterward; a Registry is not safe for
// concurrent writes, but concurrent reads are fine once analysis has
// finished and the owning descriptor graph has been frozen (spec §5).
type Registry struct {
	// subtypes[rootFullName] is a btree keyed by subtype id.
	subtypes map[string]*btree.Map[uint32, *schema.StructDescriptor]
	// extensions[structFullName] is a btree keyed by extension field id.
	extensions map[string]*btree.Map[uint32, *schema.ExtensionField]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		subtypes:   map[string]*btree.Map[uint32, *schema.StructDescriptor]{},
		extensions: map[string]*btree.Map[uint32, *schema.ExtensionField]{},
	}
}

// AddSubtype registers subtype under its subtype root (spec §4.3 phase
// B.2; original runtime/typeregistry.py addSubtype). It returns an error
// if subtype has no TypeID or no BaseType, or if its TypeID is already
// registered under the same root.
func (r *Registry) AddSubtype(subtype *schema.StructDescriptor) error {
	if subtype.TypeID == nil {
		return fmt.Errorf("registry: %s has no declared type id", subtype.FullName())
	}
	if subtype.BaseType == nil {
		return fmt.Errorf("registry: %s has no base type", subtype.FullName())
	}
	root := subtype.SubtypeRoot()
	key := root.FullName()
	tree, ok := r.subtypes[key]
	if !ok {
		tree = &btree.Map[uint32, *schema.StructDescriptor]{}
		r.subtypes[key] = tree
	}
	if _, exists := tree.Get(*subtype.TypeID); exists {
		return fmt.Errorf("subtype id %d already registered under %s", *subtype.TypeID, key)
	}
	tree.Set(*subtype.TypeID, subtype)
	return nil
}

// Subtype retrieves a subtype of root by subtype id.
func (r *Registry) Subtype(root *schema.StructDescriptor, typeID uint32) (*schema.StructDescriptor, bool) {
	tree, ok := r.subtypes[root.FullName()]
	if !ok {
		return nil, false
	}
	return tree.Get(typeID)
}

// Subtypes returns all registered subtypes of root, in ascending subtype
// id order.
func (r *Registry) Subtypes(root *schema.StructDescriptor) []*schema.StructDescriptor {
	tree, ok := r.subtypes[root.FullName()]
	if !ok {
		return nil
	}
	var out []*schema.StructDescriptor
	tree.Scan(func(_ uint32, sd *schema.StructDescriptor) bool {
		out = append(out, sd)
		return true
	})
	return out
}

// AddExtension registers an ExtensionField against the struct it extends.
func (r *Registry) AddExtension(ef *schema.ExtensionField) error {
	key := ef.Extends.FullName()
	tree, ok := r.extensions[key]
	if !ok {
		tree = &btree.Map[uint32, *schema.ExtensionField]{}
		r.extensions[key] = tree
	}
	if _, exists := tree.Get(ef.Field.ID); exists {
		return fmt.Errorf("duplicate extension id %d for struct %s", ef.Field.ID, key)
	}
	tree.Set(ef.Field.ID, ef)
	return nil
}

// Extension retrieves the ExtensionField registered against struct for
// fieldID, if any.
func (r *Registry) Extension(struc *schema.StructDescriptor, fieldID uint32) (*schema.ExtensionField, bool) {
	tree, ok := r.extensions[struc.FullName()]
	if !ok {
		return nil, false
	}
	return tree.Get(fieldID)
}

// Extensions returns all ExtensionFields registered against struc, in
// ascending field id order.
func (r *Registry) Extensions(struc *schema.StructDescriptor) []*schema.ExtensionField {
	tree, ok := r.extensions[struc.FullName()]
	if !ok {
		return nil
	}
	var out []*schema.ExtensionField
	tree.Scan(func(_ uint32, ef *schema.ExtensionField) bool {
		out = append(out, ef)
		return true
	})
	return out
}

// AddFile registers every subtype and extension declared within file,
// walking nested structs recursively (original runtime/typeregistry.py
// addFile).
func (r *Registry) AddFile(file *schema.FileDescriptor) error {
	var addStruct func(sd *schema.StructDescriptor) error
	addStruct = func(sd *schema.StructDescriptor) error {
		if sd.BaseType != nil {
			if err := r.AddSubtype(sd); err != nil {
				return err
			}
		}
		for _, nested := range sd.NestedStructs {
			if err := addStruct(nested); err != nil {
				return err
			}
		}
		return nil
	}
	for _, sd := range file.Structs {
		if err := addStruct(sd); err != nil {
			return err
		}
	}
	for _, ef := range file.Extensions {
		if err := r.AddExtension(ef); err != nil {
			return err
		}
	}
	return nil
}

// Instance is the process-wide default Registry, analogous to the
// Python original's TypeRegistry.INSTANCE (spec §4.4, §9 "Global mutable
// registry"). Compilation does not require using it — analyzer.Analyzer
// accepts a *Registry explicitly — but a single process-wide instance is
// provided for convenience, written only during module initialization per
// spec §5.
var Instance = New()
