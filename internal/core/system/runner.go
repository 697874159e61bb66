package system

import (
	"fmt"
	"sort"
)

// Graph is the explicit per-frame dependency graph. Nodes are declared once,
// each naming the nodes it depends on, and Run executes them in phase order:
// parallel nodes are scheduled behind the combined handle of their deps, sync
// nodes wait for their deps and then run on the calling goroutine.
//
// A dependency must be declared before the node that uses it and may not sit
// in a later phase, so every graph is acyclic by construction.
type Graph struct {
	sched  *Scheduler
	nodes  []*node
	index  map[string]*node
	sorted bool
}

type node struct {
	name     string
	phase    Phase
	deps     []string
	parallel func(dep *Handle) *Handle
	sync     func()
}

func NewGraph(s *Scheduler) *Graph {
	return &Graph{
		sched: s,
		nodes: make([]*node, 0, 32),
		index: make(map[string]*node, 32),
	}
}

// Parallel declares a node whose work is scheduled on the worker pool. fn
// receives the combined handle of deps and returns the node's own handle.
func (g *Graph) Parallel(name string, phase Phase, deps []string, fn func(dep *Handle) *Handle) error {
	return g.add(&node{name: name, phase: phase, deps: deps, parallel: fn})
}

// Sync declares a node that runs on the controlling goroutine once every dep
// has completed, e.g. draining an effect queue.
func (g *Graph) Sync(name string, phase Phase, deps []string, fn func()) error {
	return g.add(&node{name: name, phase: phase, deps: deps, sync: fn})
}

func (g *Graph) add(n *node) error {
	if _, ok := g.index[n.name]; ok {
		return fmt.Errorf("graph node %q declared twice", n.name)
	}
	for _, d := range n.deps {
		dep, ok := g.index[d]
		if !ok {
			return fmt.Errorf("graph node %q: unknown dependency %q", n.name, d)
		}
		if dep.phase > n.phase {
			return fmt.Errorf("graph node %q (%s) depends on %q in later phase %s", n.name, n.phase, d, dep.phase)
		}
	}
	g.nodes = append(g.nodes, n)
	g.index[n.name] = n
	g.sorted = false
	return nil
}

// Has reports whether a node with the given name is declared.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

func (g *Graph) Len() int { return len(g.nodes) }

// Names lists nodes in execution order.
func (g *Graph) Names() []string {
	g.ensureSorted()
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.name
	}
	return out
}

// Run executes one pass of the graph and returns every node's handle. All
// handles are complete when Run returns.
func (g *Graph) Run() map[string]*Handle {
	g.ensureSorted()
	handles := make(map[string]*Handle, len(g.nodes))
	deps := make([]*Handle, 0, 8)
	for _, n := range g.nodes {
		deps = deps[:0]
		for _, d := range n.deps {
			deps = append(deps, handles[d])
		}
		if n.sync != nil {
			for _, d := range deps {
				d.Complete()
			}
			n.sync()
			handles[n.name] = Completed()
			continue
		}
		var dep *Handle
		switch len(deps) {
		case 0:
		case 1:
			dep = deps[0]
		default:
			dep = g.sched.Combine(deps...)
		}
		h := n.parallel(dep)
		if h == nil {
			h = Completed()
		}
		handles[n.name] = h
	}
	for _, h := range handles {
		h.Complete()
	}
	return handles
}

func (g *Graph) ensureSorted() {
	if !g.sorted {
		sort.SliceStable(g.nodes, func(i, j int) bool {
			return g.nodes[i].phase < g.nodes[j].phase
		})
		g.sorted = true
	}
}
