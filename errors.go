package ecs

import "fmt"

// Error codes naming every recoverable failure the World's direct-access
// operations can return.
const (
	CodeComponentNotRegistered = "COMPONENT_NOT_REGISTERED"
	CodeEntityDead             = "ENTITY_DEAD"
	CodeCycleError             = "CYCLE_ERROR"
	CodeShutdownTimeout        = "SHUTDOWN_TIMEOUT"
	CodeObserverOverflow       = "OBSERVER_OVERFLOW"
)

// Error is the recoverable-error type returned from direct-access world
// operations. Programmer errors (BorrowConflict, DuplicateSystem,
// SelfParent) are not Errors — they panic instead.
type Error struct {
	Code   string
	Entity Entity
	Detail string
}

func (e *Error) Error() string {
	if e.Entity != InvalidEntity {
		return fmt.Sprintf("[%s] %s (entity=%s)", e.Code, e.Detail, e.Entity)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Detail)
}

func errComponentNotRegistered(typeName string) *Error {
	return &Error{Code: CodeComponentNotRegistered, Detail: "component not registered: " + typeName}
}

func errEntityDead(e Entity) *Error {
	return &Error{Code: CodeEntityDead, Entity: e, Detail: "entity is dead"}
}

// CycleError is returned by SystemsContainer.AddEdge/AddEdges when an edge would
// close a cycle. The scheduler's graph is left byte-identical to its
// pre-call state.
type CycleError struct {
	Involved []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("ecs: cycle detected, involved systems: %v", e.Involved)
}

// ShutdownTimeout is returned by a runner's graceful shutdown when the
// time budget elapses before the compute pool drains.
type ShutdownTimeout struct {
	Remaining int
}

func (e *ShutdownTimeout) Error() string {
	return fmt.Sprintf("ecs: graceful shutdown timed out with %d task(s) remaining", e.Remaining)
}

// panicBorrowConflict panics with a message naming the type whose storage
// was already borrowed by a conflicting concurrent Get/GetMut. Detection is
// synchronous — a failed TryLock/TryRLock panics immediately instead of
// blocking on the existing holder, which is what would let a reentrant
// borrow on the same goroutine deadlock.
func panicBorrowConflict(typeName string) {
	panic(fmt.Sprintf("ecs: borrow conflict on %s: conflicting concurrent borrow already held", typeName))
}

func panicDuplicateSystem(name string) {
	panic(fmt.Sprintf("ecs: system %q already registered", name))
}

func panicSelfParent(e Entity) {
	panic(fmt.Sprintf("ecs: entity %s cannot be its own parent", e))
}
