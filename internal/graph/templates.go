package graph

import (
	"fmt"
	"math/rand"
)

// QuadGraph builds the quad-partition grid hierarchy over a rows-by-cols
// grid of variables (variable index = row*cols + col).
//
// Patches are merged level by level: each step halves the grid (rounding
// up) by grouping up to 2x2 neighboring patches. A group of two patches
// becomes a region with a single partition; a full 2x2 group is
// decomposed both horizontally-first and vertically-first, so the merged
// region ends up with two alternative partitions. Those multi-partition
// regions are what later turn into mixing layers.
func QuadGraph(rows, cols int) (*Graph, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("quad graph: invalid shape %dx%d", rows, cols)
	}
	b := NewBuilder()

	cur := make([][]NodeID, rows)
	for r := 0; r < rows; r++ {
		cur[r] = make([]NodeID, cols)
		for c := 0; c < cols; c++ {
			cur[r][c] = b.AddRegion(r*cols + c)
		}
	}

	h, w := rows, cols
	for h > 1 || w > 1 {
		nh, nw := (h+1)/2, (w+1)/2
		next := make([][]NodeID, nh)
		for i := 0; i < nh; i++ {
			next[i] = make([]NodeID, nw)
			for j := 0; j < nw; j++ {
				patches := quadPatches(cur, h, w, i, j)
				switch len(patches) {
				case 1:
					// Odd remainder patch, passes through unchanged.
					next[i][j] = patches[0]
				case 2:
					next[i][j] = mergePair(b, patches[0], patches[1])
				case 4:
					next[i][j] = mergeQuad(b, patches)
				}
			}
		}
		cur, h, w = next, nh, nw
	}
	return b.Build()
}

// quadPatches collects the up-to-four current patches covered by the
// next-level cell (i, j), in top-left, top-right, bottom-left,
// bottom-right order.
func quadPatches(cur [][]NodeID, h, w, i, j int) []NodeID {
	var out []NodeID
	for _, r := range []int{2 * i, 2*i + 1} {
		for _, c := range []int{2 * j, 2*j + 1} {
			if r < h && c < w {
				out = append(out, cur[r][c])
			}
		}
	}
	return out
}

// mergePair joins two regions under a fresh parent region with a single
// partition.
func mergePair(b *Builder, lhs, rhs NodeID) NodeID {
	scope := b.nodes[lhs].Scope.Union(b.nodes[rhs].Scope)
	p := b.AddPartitionScope(scope)
	b.Connect(lhs, p)
	b.Connect(rhs, p)
	r := b.AddRegionScope(scope)
	b.Connect(p, r)
	return r
}

// mergeQuad joins a full 2x2 block of regions under a parent region
// with two alternative decompositions: horizontal halves first and
// vertical halves first.
func mergeQuad(b *Builder, patches []NodeID) NodeID {
	tl, tr, bl, br := patches[0], patches[1], patches[2], patches[3]

	top := mergePair(b, tl, tr)
	bottom := mergePair(b, bl, br)
	left := mergePair(b, tl, bl)
	right := mergePair(b, tr, br)

	scope := b.nodes[top].Scope.Union(b.nodes[bottom].Scope)
	merged := b.AddRegionScope(scope)

	horiz := b.AddPartitionScope(scope)
	b.Connect(top, horiz)
	b.Connect(bottom, horiz)
	b.Connect(horiz, merged)

	vert := b.AddPartitionScope(scope)
	b.Connect(left, vert)
	b.Connect(right, vert)
	b.Connect(vert, merged)

	return merged
}

// LinearTree builds the left-deep chain over numVars variables:
// {0}, then {0,1}, then {0,1,2}, and so on, each step partitioning the
// prefix region and the next singleton.
func LinearTree(numVars int) (*Graph, error) {
	if numVars < 1 {
		return nil, fmt.Errorf("linear tree: need at least 1 variable, got %d", numVars)
	}
	b := NewBuilder()
	prev := b.AddRegion(0)
	for v := 1; v < numVars; v++ {
		leaf := b.AddRegion(v)
		prev = mergePair(b, prev, leaf)
	}
	return b.Build()
}

// RandomBinaryTree builds a region graph whose root is decomposed by
// `repetitions` independent random balanced binary trees over the same
// variables. Leaf regions are shared across repetitions; with more than
// one repetition the root region gets multiple partitions.
func RandomBinaryTree(numVars, repetitions int, rng *rand.Rand) (*Graph, error) {
	if numVars < 2 {
		return nil, fmt.Errorf("random binary tree: need at least 2 variables, got %d", numVars)
	}
	if repetitions < 1 {
		return nil, fmt.Errorf("random binary tree: need at least 1 repetition, got %d", repetitions)
	}
	b := NewBuilder()

	leaves := make(map[int]NodeID, numVars)
	leaf := func(v int) NodeID {
		id, ok := leaves[v]
		if !ok {
			id = b.AddRegion(v)
			leaves[v] = id
		}
		return id
	}

	root := b.AddRegionScope(Range(numVars))

	// split recursively bisects vars (a random permutation slice) and
	// returns the region covering it.
	var split func(vars []int) NodeID
	split = func(vars []int) NodeID {
		if len(vars) == 1 {
			return leaf(vars[0])
		}
		mid := len(vars) / 2
		lhs, rhs := split(vars[:mid]), split(vars[mid:])
		return mergePair(b, lhs, rhs)
	}

	for rep := 0; rep < repetitions; rep++ {
		vars := rng.Perm(numVars)
		mid := len(vars) / 2
		lhs, rhs := split(vars[:mid]), split(vars[mid:])
		p := b.AddPartitionScope(Range(numVars))
		b.Connect(lhs, p)
		b.Connect(rhs, p)
		b.Connect(p, root)
	}
	return b.Build()
}
