package foreman

import "fmt"

// DoubleFreeError reports that an entity ID was freed twice.
type DoubleFreeError struct {
	ID RawEntity
}

func (e DoubleFreeError) Error() string {
	return fmt.Sprintf("entity ID %d freed more than once", e.ID)
}

// AllocatorExhaustedError reports that the ID gauge reached the domain maximum.
type AllocatorExhaustedError struct{}

func (e AllocatorExhaustedError) Error() string {
	return "entity ID space exhausted"
}

// AllocatorCorruptionError reports a recycled set inconsistency.
type AllocatorCorruptionError struct {
	ID RawEntity
}

func (e AllocatorCorruptionError) Error() string {
	return fmt.Sprintf("cannot consume recycled entity ID %d", e.ID)
}

// DuplicateSystemError reports two systems registered under the same name.
type DuplicateSystemError struct {
	Name string
}

func (e DuplicateSystemError) Error() string {
	return fmt.Sprintf("system %q registered twice", e.Name)
}

// UndeclaredAccessError reports a system touching a resource it never requested.
type UndeclaredAccessError struct {
	System   string
	Resource string
	Write    bool
}

func (e UndeclaredAccessError) Error() string {
	intent := "read"
	if e.Write {
		intent = "write"
	}
	return fmt.Sprintf("system %q did not declare a %s request for %s", e.System, intent, e.Resource)
}

// UndeclaredDiscrimError reports partial isotope access outside the declared
// discriminant list.
type UndeclaredDiscrimError struct {
	Archetype, Component string
	Discrim              Discrim
}

func (e UndeclaredDiscrimError) Error() string {
	return fmt.Sprintf(
		"discriminant %d of %q/%q is outside the partial request's declared list",
		e.Discrim, e.Archetype, e.Component,
	)
}

// DependencyCycleError reports a cycle in the ordering graph at build time.
type DependencyCycleError struct {
	Nodes []string
}

func (e DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle among scheduler nodes: %v", e.Nodes)
}

// MissingComponentError reports entity creation without a required component.
type MissingComponentError struct {
	Archetype, Component string
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf(
		"cannot create an entity of archetype %q without explicitly passing a component of type %q",
		e.Archetype, e.Component,
	)
}

// MissingInitDepError reports an auto-init closure whose dependency was not supplied.
type MissingInitDepError struct {
	Archetype, Component, Dep string
}

func (e MissingInitDepError) Error() string {
	return fmt.Sprintf(
		"cannot create an entity of archetype %q without component %q, which is required to auto-initialize %q",
		e.Archetype, e.Dep, e.Component,
	)
}

// InitCycleError reports a cycle among auto-init dependencies.
type InitCycleError struct {
	Archetype, Component string
}

func (e InitCycleError) Error() string {
	return fmt.Sprintf("auto-init dependency cycle through component %q of archetype %q", e.Component, e.Archetype)
}

// DuplicateInsertError reports the same component inserted into a ComponentMap twice.
type DuplicateInsertError struct {
	Component string
}

func (e DuplicateInsertError) Error() string {
	return fmt.Sprintf("component %q inserted into the same ComponentMap twice", e.Component)
}

// MustAbsentError reports an infallible access to a missing component.
type MustAbsentError struct {
	Archetype, Component string
	Entity               RawEntity
}

func (e MustAbsentError) Error() string {
	return fmt.Sprintf(
		"component %q of archetype %q is declared Must but absent on entity %d",
		e.Component, e.Archetype, e.Entity,
	)
}

// NotMustError reports infallible access to a component without the Must
// capability (neither Required nor auto-initialized).
type NotMustError struct {
	Archetype, Component string
}

func (e NotMustError) Error() string {
	return fmt.Sprintf(
		"component %q of archetype %q is neither required nor auto-initialized; use TryGet",
		e.Component, e.Archetype,
	)
}

// StorageLockError reports a storage lock unexpectedly held. The scheduler
// exclusion graph makes this impossible unless the scheduler itself is buggy.
type StorageLockError struct {
	Archetype, Component string
}

func (e StorageLockError) Error() string {
	return fmt.Sprintf(
		"storage for %q/%q is locked; concurrent systems were scheduled against conflicting resources",
		e.Archetype, e.Component,
	)
}

// UnchunkedStorageError reports chunked access against a storage that does
// not store components densely.
type UnchunkedStorageError struct {
	Archetype, Component string
}

func (e UnchunkedStorageError) Error() string {
	return fmt.Sprintf("storage for %q/%q does not support chunked access", e.Archetype, e.Component)
}

// FinalizerPresenceError reports a finalizer declared on a required component.
type FinalizerPresenceError struct {
	Archetype, Component string
}

func (e FinalizerPresenceError) Error() string {
	return fmt.Sprintf("finalizer component %q of archetype %q must be Optional", e.Component, e.Archetype)
}

// RequiredRemovalError reports removal of a component with Required presence.
type RequiredRemovalError struct {
	Archetype, Component string
	Entity               RawEntity
}

func (e RequiredRemovalError) Error() string {
	return fmt.Sprintf(
		"cannot remove required component %q of archetype %q from entity %d",
		e.Component, e.Archetype, e.Entity,
	)
}

// LockedWorldError reports an offline operation attempted during a cycle.
type LockedWorldError struct {
	Operation string
}

func (e LockedWorldError) Error() string {
	return fmt.Sprintf("world is executing a cycle; %s is an offline operation", e.Operation)
}

// SchedulerInvariantError reports a broken invariant of the scheduler, the
// storages or the registries. Besides planner state transitions that can only
// arise from a bug in the scheduler itself, it reports misuse detected at run
// time, such as access outside a split storage view, zipping accessors of
// different archetypes, or declaring a component or global after the world
// is built.
type SchedulerInvariantError struct {
	Detail string
}

func (e SchedulerInvariantError) Error() string {
	return "scheduler invariant violated: " + e.Detail
}

// UnsendableGlobalError reports a sendable system requesting a main-thread
// pinned global.
type UnsendableGlobalError struct {
	System, Global string
}

func (e UnsendableGlobalError) Error() string {
	return fmt.Sprintf("sendable system %q requests unsendable global %q", e.System, e.Global)
}
