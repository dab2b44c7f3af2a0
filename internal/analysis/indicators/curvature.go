package indicators

import "math"

// CurvatureScore measures how closely prices resemble a smooth bowl rather
// than a sharp V. It returns a value in [0, 1]; higher is rounder.
//
// Positions are mapped to [-1, 1] and prices to [0, 1]; a quadratic is fitted
// by least squares. The score is the product of the fit's R², the share of
// time spent in the lower third of the range (a V passes through the bottom
// quickly) and a penalty for a vertex far from the centre. A non-convex fit
// scores 0.
func CurvatureScore(prices []float64) float64 {
	n := len(prices)
	if n < 5 {
		return 0
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices {
		if math.IsNaN(p) {
			return 0
		}
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	span := hi - lo
	if span == 0 {
		return 0
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range prices {
		xs[i] = 2*float64(i)/float64(n-1) - 1
		ys[i] = (p - lo) / span
	}

	a, b, c, ok := fitQuadratic(xs, ys)
	if !ok || a <= 0 {
		return 0
	}

	meanY := Mean(ys)
	var ssRes, ssTot float64
	lowerThird := 0
	for i := range xs {
		fit := a*xs[i]*xs[i] + b*xs[i] + c
		ssRes += (ys[i] - fit) * (ys[i] - fit)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
		if ys[i] < 1.0/3 {
			lowerThird++
		}
	}
	if ssTot == 0 {
		return 0
	}
	r2 := clip(1-ssRes/ssTot, 0, 1)

	// A parabola spends ~58% of its time in the lower third, a V ~33%.
	dwell := clip((float64(lowerThird)/float64(n)-0.2)/0.35, 0, 1)

	vertex := -b / (2 * a)
	centred := clip(1-math.Max(0, math.Abs(vertex)-0.5)/0.5, 0, 1)

	return clip(r2*dwell*centred, 0, 1)
}

// fitQuadratic solves the least-squares normal equations for y = a·x² + b·x + c.
func fitQuadratic(xs, ys []float64) (a, b, c float64, ok bool) {
	var s0, s1, s2, s3, s4, t0, t1, t2 float64
	for i := range xs {
		x := xs[i]
		x2 := x * x
		s0++
		s1 += x
		s2 += x2
		s3 += x2 * x
		s4 += x2 * x2
		t0 += ys[i]
		t1 += x * ys[i]
		t2 += x2 * ys[i]
	}

	// Augmented matrix for unknowns (a, b, c).
	m := [3][4]float64{
		{s4, s3, s2, t2},
		{s3, s2, s1, t1},
		{s2, s1, s0, t0},
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return 0, 0, 0, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := 0; row < 3; row++ {
			if row == col {
				continue
			}
			f := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	return m[0][3] / m[0][0], m[1][3] / m[1][1], m[2][3] / m[2][2], true
}
