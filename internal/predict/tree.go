package predict

import (
	"math"
	"sort"
)

// Node is one node of a regression tree. Leaves have Left == -1.
// Rows go left when x[Feature] <= Threshold; NaN values go right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a CART regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for one feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for t.Nodes[i].Left >= 0 {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	features int
	minSplit int
	nodes    []Node
}

// buildTree grows a tree on the rows listed in sample (duplicates allowed)
// until nodes are pure, smaller than minSplit, or cannot be split.
func buildTree(x [][]float64, y []float64, sample []int, minSplit int) Tree {
	b := &treeBuilder{x: x, y: y, minSplit: minSplit}
	if len(x) > 0 {
		b.features = len(x[0])
	}
	b.grow(append([]int(nil), sample...))
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(rows []int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1})

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := b.y[r]
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	b.nodes[id].Value = sum / float64(len(rows))

	if len(rows) < b.minSplit || lo == hi {
		return id
	}
	feature, threshold, ok := b.bestSplit(rows)
	if !ok {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left)
	rt := b.grow(right)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = rt
	return id
}

// bestSplit returns the split with the lowest summed squared error of the
// two children. Ties keep the first feature and lowest threshold found.
func (b *treeBuilder) bestSplit(rows []int) (int, float64, bool) {
	n := len(rows)
	var total, totalSq float64
	for _, r := range rows {
		total += b.y[r]
		totalSq += b.y[r] * b.y[r]
	}

	best := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, n)

	for f := 0; f < b.features; f++ {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, c := b.x[sorted[i]][f], b.x[sorted[j]][f]
			if math.IsNaN(a) {
				return false
			}
			return math.IsNaN(c) || a < c
		})

		m := 0
		for m < n && !math.IsNaN(b.x[sorted[m]][f]) {
			m++
		}
		if m == 0 {
			continue
		}

		var sumL, sqL float64
		for k := 0; k < m; k++ {
			v := b.y[sorted[k]]
			sumL += v
			sqL += v * v

			cur := b.x[sorted[k]][f]
			var threshold float64
			switch {
			case k < m-1:
				next := b.x[sorted[k+1]][f]
				if next == cur {
					continue
				}
				threshold = cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
			case m < n:
				// every known value left, every NaN right
				threshold = cur
			default:
				continue
			}

			nl := float64(k + 1)
			nr := float64(n - k - 1)
			sumR := total - sumL
			sqR := totalSq - sqL
			sse := (sqL - sumL*sumL/nl) + (sqR - sumR*sumR/nr)
			if sse < best {
				best = sse
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
