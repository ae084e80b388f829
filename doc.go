// Package ecs provides the RedLilium entity-component-system runtime: a
// generational entity allocator, sparse-set component storage, type-keyed
// resources, a deadlock-free access/query layer, deferred commands, typed
// events, and a three-tier reactive layer (hooks, deferred observers,
// double-buffered triggers).
//
// The distinguishing property of the runtime is that synchronous ECS
// systems and priority-driven background compute tasks (see the compute
// subpackage) share a single work-stealing worker pool, so cores left idle
// between dependent systems are automatically reclaimed for background
// work such as navmesh rebuilds, pathfinding, or asset preparation.
//
// Scheduling (system dependency graphs, sets, conditions) lives in the
// scheduler subpackage; single- and multi-threaded execution lives in the
// runner subpackage; the compute pool and its cooperative-yield semantics
// live in the compute subpackage.
package ecs
