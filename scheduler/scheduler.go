// Package scheduler builds the dependency graph between systems — edges,
// exclusive systems, system sets with virtual enter/exit barriers, and
// run-conditions — and derives the topological execution order the runner
// packages walk each frame. It deliberately holds no World reference
// itself: a SystemsContainer describes a graph, a runner walks it.
package scheduler

import (
	"fmt"
	"sort"

	ecs "github.com/redlilium/ecs"
)

// SystemFunc is a unit of work scheduled against a World. Most systems
// only read/write via ecs.Query/ecs.Lock internally; SystemFunc itself
// carries no access declaration; the runner trusts each system to lock
// what it touches.
type SystemFunc func(w *ecs.World)

// RunCondition gates whether a system executes this frame.
type RunCondition func(w *ecs.World) bool

type node struct {
	name       string
	fn         SystemFunc
	exclusive  bool
	virtual    bool // true for a set's enter/exit barrier, which runs no code
	conditions []RunCondition
}

// SystemsContainer is the mutable system graph a schedule compiles from:
// nodes keyed by name, an explicit edge list, and topological derivation,
// generalized with system sets and run conditions.
type SystemsContainer struct {
	nodes map[string]*node
	order []string // insertion order, used only for deterministic tie-breaking

	// edges[a] contains every b such that a must run before b.
	edges map[string]map[string]struct{}

	sets map[string]*systemSet
}

type systemSet struct {
	name    string
	enter   string
	exit    string
	members []string
}

// NewSystemsContainer returns an empty graph.
func NewSystemsContainer() *SystemsContainer {
	return &SystemsContainer{
		nodes: make(map[string]*node),
		edges: make(map[string]map[string]struct{}),
		sets:  make(map[string]*systemSet),
	}
}

// AddSystem registers a normal (concurrent-eligible) system under name.
// Panics if name is already registered — a duplicate system name is
// always a programmer error, not a recoverable one.
func (c *SystemsContainer) AddSystem(name string, fn SystemFunc) {
	c.addNode(name, fn, false)
}

// AddExclusive registers a system that must run alone: no other system,
// exclusive or not, executes concurrently with it.
func (c *SystemsContainer) AddExclusive(name string, fn SystemFunc) {
	c.addNode(name, fn, true)
}

func (c *SystemsContainer) addNode(name string, fn SystemFunc, exclusive bool) {
	if _, exists := c.nodes[name]; exists {
		panic(fmt.Sprintf("ecs: system %q already registered", name))
	}
	c.nodes[name] = &node{name: name, fn: fn, exclusive: exclusive}
	c.order = append(c.order, name)
	c.edges[name] = make(map[string]struct{})
}

// AddCondition attaches a run-condition to an already-registered system or
// set member; the system is skipped (but still satisfies its dependency
// edges for downstream nodes) whenever any attached condition returns
// false.
func (c *SystemsContainer) AddCondition(name string, cond RunCondition) {
	n, ok := c.nodes[name]
	if !ok {
		panic(fmt.Sprintf("ecs: AddCondition on unknown system %q", name))
	}
	n.conditions = append(n.conditions, cond)
}

// AddEdge records that before must run before after. Returns a
// *ecs.CycleError and leaves the graph byte-identical to its prior state
// if the edge would close a cycle.
func (c *SystemsContainer) AddEdge(before, after string) error {
	return c.AddEdges([2]string{before, after})
}

// AddEdges adds every pair atomically: either all of them land, or none
// do, and a single cycle anywhere in the batch aborts the whole call.
func (c *SystemsContainer) AddEdges(pairs ...[2]string) error {
	for _, p := range pairs {
		if _, ok := c.nodes[p[0]]; !ok {
			panic(fmt.Sprintf("ecs: AddEdge references unknown system %q", p[0]))
		}
		if _, ok := c.nodes[p[1]]; !ok {
			panic(fmt.Sprintf("ecs: AddEdge references unknown system %q", p[1]))
		}
	}

	trial := c.cloneEdges()
	for _, p := range pairs {
		trial[p[0]][p[1]] = struct{}{}
	}

	if involved := findCycle(trial); involved != nil {
		return &ecs.CycleError{Involved: involved}
	}

	c.edges = trial
	return nil
}

func (c *SystemsContainer) cloneEdges() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(c.edges))
	for k, v := range c.edges {
		cp := make(map[string]struct{}, len(v))
		for t := range v {
			cp[t] = struct{}{}
		}
		out[k] = cp
	}
	return out
}

// findCycle returns the names of systems on a cycle, or nil if the graph
// is acyclic. Uses a standard three-color DFS.
func findCycle(edges map[string]map[string]struct{}) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(edges))
	names := make([]string, 0, len(edges))
	for n := range edges {
		names = append(names, n)
	}
	sort.Strings(names)

	var stack []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		stack = append(stack, n)
		targets := make([]string, 0, len(edges[n]))
		for t := range edges[n] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			switch color[t] {
			case white:
				if visit(t) {
					return true
				}
			case gray:
				// found the back edge; capture the cycle segment from t onward
				for i, s := range stack {
					if s == t {
						cycle = append(append([]string(nil), stack[i:]...), t)
						return true
					}
				}
				cycle = []string{t, n}
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, n := range names {
		if color[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}

// ---- system sets ----

// SetEnter installs (if absent) a virtual barrier node that every member of
// set must run after, and returns its synthetic name.
func (c *SystemsContainer) SetEnter(set string) string {
	return c.ensureSet(set).enter
}

// SetExit installs (if absent) a virtual barrier node that every member of
// set must run before, and returns its synthetic name.
func (c *SystemsContainer) SetExit(set string) string {
	return c.ensureSet(set).exit
}

func (c *SystemsContainer) ensureSet(set string) *systemSet {
	if s, ok := c.sets[set]; ok {
		return s
	}
	enter := "__set:" + set + ":enter"
	exit := "__set:" + set + ":exit"
	c.nodes[enter] = &node{name: enter, virtual: true}
	c.nodes[exit] = &node{name: exit, virtual: true}
	c.edges[enter] = make(map[string]struct{})
	c.edges[exit] = make(map[string]struct{})
	c.order = append(c.order, enter, exit)
	s := &systemSet{name: set, enter: enter, exit: exit}
	c.sets[set] = s
	return s
}

// AddToSet makes name run strictly between set's enter and exit barriers.
func (c *SystemsContainer) AddToSet(name, set string) error {
	s := c.ensureSet(set)
	if err := c.AddEdges([2]string{s.enter, name}, [2]string{name, s.exit}); err != nil {
		return err
	}
	s.members = append(s.members, name)
	return nil
}

// AddSetEdge orders one set's whole membership before another's: every
// member of before (via its exit barrier) must complete before after's
// enter barrier releases.
func (c *SystemsContainer) AddSetEdge(before, after string) error {
	b := c.ensureSet(before)
	a := c.ensureSet(after)
	return c.AddEdge(b.exit, a.enter)
}

// ---- derivation ----

// TopoOrder returns one valid topological order of every registered node
// (including virtual set barriers), or a *ecs.CycleError if the graph
// somehow contains a cycle despite AddEdge's guard (defensive; AddEdge
// should make this unreachable in practice).
func (c *SystemsContainer) TopoOrder() ([]string, error) {
	if involved := findCycle(c.edges); involved != nil {
		return nil, &ecs.CycleError{Involved: involved}
	}

	indegree := make(map[string]int, len(c.nodes))
	for n := range c.nodes {
		indegree[n] = 0
	}
	for _, targets := range c.edges {
		for t := range targets {
			indegree[t]++
		}
	}

	var ready []string
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var out []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		targets := make([]string, 0, len(c.edges[n]))
		for t := range c.edges[n] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			indegree[t]--
			if indegree[t] == 0 {
				ready = append(ready, t)
			}
		}
	}
	return out, nil
}

// Dependents returns every node that has an edge from name.
func (c *SystemsContainer) Dependents(name string) []string {
	out := make([]string, 0, len(c.edges[name]))
	for t := range c.edges[name] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Indegree returns the number of systems that must complete before name
// can run, used by the multi-threaded runner to seed its per-node
// dependency counters.
func (c *SystemsContainer) Indegree() map[string]int {
	indegree := make(map[string]int, len(c.nodes))
	for n := range c.nodes {
		indegree[n] = 0
	}
	for _, targets := range c.edges {
		for t := range targets {
			indegree[t]++
		}
	}
	return indegree
}

// IsExclusive reports whether name must run with no concurrent neighbors.
func (c *SystemsContainer) IsExclusive(name string) bool {
	n, ok := c.nodes[name]
	return ok && n.exclusive
}

// IsVirtual reports whether name is a system-set barrier carrying no code.
func (c *SystemsContainer) IsVirtual(name string) bool {
	n, ok := c.nodes[name]
	return ok && n.virtual
}

// Run executes name's body if every attached condition passes. Virtual
// barrier nodes and systems that fail a condition are no-ops.
func (c *SystemsContainer) Run(w *ecs.World, name string) {
	n, ok := c.nodes[name]
	if !ok || n.virtual || n.fn == nil {
		return
	}
	for _, cond := range n.conditions {
		if !cond(w) {
			return
		}
	}
	n.fn(w)
}
