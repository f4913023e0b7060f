// Package resolver orders a set of patches so that every dependency is
// applied before its dependents.
//
// Resolution is a pure function of its input. Dependencies that point outside
// the input set are accepted when the External lookup knows them (they are
// treated as already satisfied); anything else is a DanglingDependencyError.
// Cycles are found with an iterative three-color depth-first search and
// reported with their member ids; the order itself is produced by Kahn's
// algorithm with a min-heap, so independent patches come out by ascending id.
package resolver

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"evalgo.org/mycelium/models"
)

// ErrDuplicatePatch is returned when the same id appears twice in one input set.
var ErrDuplicatePatch = errors.New("duplicate patch in resolution set")

// CycleError names the patches that form a dependency cycle.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between patches: %s", strings.Join(e.Members, ", "))
}

// DanglingDependencyError is returned when a dependency does not exist anywhere.
type DanglingDependencyError struct {
	Patch   string
	Missing string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("patch %s depends on unknown patch %s", e.Patch, e.Missing)
}

// External reports whether a patch outside the input set exists.
type External interface {
	Has(id string) bool
}

// Known is a set-backed External.
type Known map[string]bool

// Has reports whether id is in the set.
func (k Known) Has(id string) bool { return k[id] }

type depGraph struct {
	ids        []string
	deps       map[string][]string
	dependents map[string][]string
}

func build(patches []*models.Patch, external External) (*depGraph, error) {
	g := &depGraph{
		deps:       make(map[string][]string, len(patches)),
		dependents: make(map[string][]string, len(patches)),
	}
	for _, p := range patches {
		if _, dup := g.deps[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePatch, p.ID)
		}
		g.deps[p.ID] = nil
		g.ids = append(g.ids, p.ID)
	}
	sort.Strings(g.ids)

	byID := make(map[string]*models.Patch, len(patches))
	for _, p := range patches {
		byID[p.ID] = p
	}
	for _, id := range g.ids {
		deps := append([]string(nil), byID[id].DependsOn...)
		sort.Strings(deps)
		for _, d := range deps {
			if _, inSet := g.deps[d]; inSet {
				g.deps[id] = append(g.deps[id], d)
				g.dependents[d] = append(g.dependents[d], id)
				continue
			}
			if external == nil || !external.Has(d) {
				return nil, &DanglingDependencyError{Patch: id, Missing: d}
			}
		}
	}
	return g, nil
}

type color uint8

const (
	white color = iota
	gray
	black
)

type frame struct {
	id   string
	next int
}

// findCycle returns the members of the first cycle found, or nil.
func (g *depGraph) findCycle() []string {
	state := make(map[string]color, len(g.ids))
	for _, root := range g.ids {
		if state[root] != white {
			continue
		}
		stack := []frame{{id: root}}
		state[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.deps[top.id]
			if top.next >= len(deps) {
				state[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := deps[top.next]
			top.next++
			switch state[dep] {
			case white:
				state[dep] = gray
				stack = append(stack, frame{id: dep})
			case gray:
				var members []string
				for i := len(stack) - 1; i >= 0; i-- {
					members = append(members, stack[i].id)
					if stack[i].id == dep {
						break
					}
				}
				sort.Strings(members)
				return members
			case black:
			}
		}
	}
	return nil
}

// Resolve returns patch ids in an order where every in-set dependency
// precedes its dependents.
func Resolve(patches []*models.Patch, external External) ([]string, error) {
	g, err := build(patches, external)
	if err != nil {
		return nil, err
	}
	if members := g.findCycle(); members != nil {
		return nil, &CycleError{Members: members}
	}

	indegree := make(map[string]int, len(g.ids))
	ready := &idHeap{}
	for _, id := range g.ids {
		indegree[id] = len(g.deps[id])
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(g.ids))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, dependent := range g.dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}
	if len(order) != len(g.ids) {
		return nil, fmt.Errorf("dependency ordering incomplete: %d of %d patches placed", len(order), len(g.ids))
	}
	return order, nil
}

// Waves groups patches into layers whose members only depend on earlier
// layers. It is a planning view; application always follows Resolve.
func Waves(patches []*models.Patch, external External) ([][]string, error) {
	g, err := build(patches, external)
	if err != nil {
		return nil, err
	}
	if members := g.findCycle(); members != nil {
		return nil, &CycleError{Members: members}
	}

	inDegree := make(map[string]int, len(g.ids))
	var queue []string
	for _, id := range g.ids {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var waves [][]string
	for len(queue) > 0 {
		wave := append([]string(nil), queue...)
		sort.Strings(wave)
		waves = append(waves, wave)

		var next []string
		for _, id := range queue {
			for _, dependent := range g.dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		queue = next
	}
	return waves, nil
}

type idHeap []string

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
