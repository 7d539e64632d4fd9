package graph

import "testing"

var edges = map[int][]int{
	0:  {1, 8},
	1:  {4, 5, 2},
	2:  {6, 3, 9},
	3:  {2, 7},
	4:  {0, 5},
	5:  {6},
	6:  {5},
	7:  {3, 6},
	8:  {},
	9:  {10, 11},
	10: {12, 13},
	11: {12, 13},
	12: {},
	13: {},
}
var _sampleGraph = OfHashable(func(i int) []int {
	return edges[i]
})

func TestBFSVisitsExactlyReachable(t *testing.T) {
	visited := map[int]bool{}
	stopped := _sampleGraph.BFS(9, func(n int) bool {
		visited[n] = true
		return false
	})
	if stopped {
		t.Error("search reported an early stop without one being requested")
	}
	for _, n := range []int{9, 10, 11, 12, 13} {
		if !visited[n] {
			t.Errorf("node %d reachable from 9 but not visited", n)
		}
	}
	for _, n := range []int{0, 5, 8} {
		if visited[n] {
			t.Errorf("node %d unreachable from 9 but visited", n)
		}
	}
}

func TestBFSVStopsEarly(t *testing.T) {
	count := 0
	stopped := _sampleGraph.BFSV(func(n int) bool {
		count++
		return n == 10 || n == 11
	}, 9)
	if !stopped {
		t.Error("expected the search to stop at the first match")
	}
	// 9 is visited first, then the first of {10, 11} stops the search.
	if count != 2 {
		t.Errorf("callback ran %d times, expected 2", count)
	}
}
