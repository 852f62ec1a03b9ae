// Package toposort provides a small generic topological sort, adapted
// from the teacher's internal/toposort package but self-contained (no
// dependency on its removed internal/ext helper package). The analyzer
// uses this to order files so that a file's imports are fully registered
// (spec §4.3 Phase A) before the file itself enters Phase B.
package toposort

import "fmt"

// Sort returns nodes ordered so that every node appears after all of its
// dependencies (as reported by deps). key must return a stable,
// comparable identity for each node. An error is returned if the graph
// contains a cycle.
func Sort[Node any, Key comparable](nodes []Node, key func(Node) Key, deps func(Node) []Key) ([]Node, error) {
	byKey := make(map[Key]Node, len(nodes))
	indegree := make(map[Key]int, len(nodes))
	children := make(map[Key][]Key)

	for _, n := range nodes {
		k := key(n)
		byKey[k] = n
		if _, ok := indegree[k]; !ok {
			indegree[k] = 0
		}
	}
	for _, n := range nodes {
		k := key(n)
		for _, d := range deps(n) {
			if _, ok := byKey[d]; !ok {
				// Dependency outside the node set (e.g. a well-known or
				// already-compiled import); it contributes no ordering
				// edge within this batch.
				continue
			}
			children[d] = append(children[d], k)
			indegree[k]++
		}
	}

	var queue []Key
	for _, n := range nodes {
		k := key(n)
		if indegree[k] == 0 {
			queue = append(queue, k)
		}
	}

	var out []Node
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		out = append(out, byKey[k])
		for _, c := range children[k] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(out) != len(nodes) {
		return nil, fmt.Errorf("toposort: cycle detected among %d unresolved node(s)", len(nodes)-len(out))
	}
	return out, nil
}
