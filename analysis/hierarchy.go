package analysis

// Hierarchy answers class hierarchy questions needed when two reference
// types meet at a join point.
type Hierarchy interface {
	// CommonSuperClass returns the internal name of the closest common
	// superclass of two distinct classes (array classes are given as
	// descriptors).
	CommonSuperClass(a, b string) string
}

// ObjectHierarchy is a Hierarchy that knows nothing about classes and
// always answers java/lang/Object.
type ObjectHierarchy struct{}

// CommonSuperClass returns java/lang/Object.
func (ObjectHierarchy) CommonSuperClass(a, b string) string {
	return "java/lang/Object"
}

// HierarchyFunc adapts a function to the Hierarchy interface.
type HierarchyFunc func(a, b string) string

// CommonSuperClass calls f(a, b).
func (f HierarchyFunc) CommonSuperClass(a, b string) string {
	return f(a, b)
}
