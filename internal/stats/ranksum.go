package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// RankSum is the outcome of a Mann-Whitney U test.
type RankSum struct {
	// U is the statistic for the first sample.
	U float64
	// P is the two-sided p-value.
	P float64
}

// exactLimit is the largest smaller-sample size for which tie-free samples
// use the exact U distribution.
const exactLimit = 8

// MannWhitneyU runs a two-sided Mann-Whitney U test using the normal
// approximation with tie correction and continuity correction.
func MannWhitneyU(x, y []float64) (RankSum, error) {
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return RankSum{}, ErrEmptySample
	}

	ranks, tieTerm := rank(append(append([]float64(nil), x...), y...))
	r1 := 0.0
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	fn1, fn2 := float64(n1), float64(n2)
	u1 := r1 - fn1*(fn1+1)/2
	u2 := fn1*fn2 - u1

	if tieTerm == 0 && min(n1, n2) <= exactLimit {
		p := 2 * exactUpperTail(math.Max(u1, u2), n1, n2)
		return RankSum{U: u1, P: math.Min(1, p)}, nil
	}

	n := fn1 + fn2
	mu := fn1 * fn2 / 2
	sigma := math.Sqrt(fn1 * fn2 / 12 * ((n + 1) - tieTerm/(n*(n-1))))
	if sigma == 0 || math.IsNaN(sigma) {
		return RankSum{U: u1, P: 1}, nil
	}

	z := (math.Max(u1, u2) - mu - 0.5) / sigma
	p := 2 * distuv.UnitNormal.Survival(z)
	return RankSum{U: u1, P: math.Min(1, math.Max(0, p))}, nil
}

// exactUpperTail returns P(U >= u) under the null hypothesis for samples of
// sizes n1 and n2 without ties.
func exactUpperTail(u float64, n1, n2 int) float64 {
	counts := uCounts(min(n1, n2), max(n1, n2))
	total, tail := 0.0, 0.0
	from := int(math.Ceil(u))
	for k, c := range counts {
		total += c
		if k >= from {
			tail += c
		}
	}
	return tail / total
}

// uCounts returns, for each value k of U, the number of orderings of m and n
// distinct values giving U = k. Orderings of j values against i values either
// end with one of the j, which beats all i, or with one of the i.
func uCounts(m, n int) []float64 {
	f := make([][]float64, m+1)
	for j := range f {
		f[j] = []float64{1}
	}
	for i := 1; i <= n; i++ {
		for j := 0; j <= m; j++ {
			next := make([]float64, j*i+1)
			copy(next, f[j])
			if j > 0 {
				for k, c := range f[j-1] {
					next[k+i] += c
				}
			}
			f[j] = next
		}
	}
	return f[m]
}

// rank assigns 1-based ranks, averaging ties, and returns Σ(t³ - t) over tie
// groups.
func rank(values []float64) ([]float64, float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	tieTerm := 0.0
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && values[idx[end]] == values[idx[start]] {
			end++
		}
		avg := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(end - start); t > 1 {
			tieTerm += t*t*t - t
		}
		start = end
	}
	return ranks, tieTerm
}
