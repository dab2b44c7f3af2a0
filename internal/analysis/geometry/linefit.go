package geometry

import (
	"math"
	"math/rand"
)

// Point is a fitter input sample: X is a bar index, Y a price.
type Point struct {
	X float64
	Y float64
}

// Line is price = Slope*index + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	Touches   int
}

// At evaluates the line at bar index x.
func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// FitConfig controls the robust fitter.
type FitConfig struct {
	// Tolerance is the maximum absolute residual for a point to count as an
	// inlier, in price units.
	Tolerance float64
	// MaxIterations caps the number of sampled pairs. When the number of
	// distinct pairs is within the cap every pair is tried in order.
	MaxIterations int
	// Seed drives pair sampling above the cap.
	Seed int64
}

// DefaultFitConfig returns the fitter defaults for a given tolerance.
func DefaultFitConfig(tolerance float64) FitConfig {
	return FitConfig{Tolerance: tolerance, MaxIterations: 200, Seed: 42}
}

// FitLine fits a line through points using a RANSAC-style consensus search.
//
// Every candidate line passes through a pair of points; the pair with the
// most inliers wins and ties go to the lowest inlier sum of squared
// residuals. The consensus set is then refit by least squares. Two points
// yield the exact interpolating line with RSquared 1. Fewer than two points,
// or points sharing a single X, yield no fit.
func FitLine(points []Point, cfg FitConfig) (Line, bool) {
	n := len(points)
	if n < 2 {
		return Line{}, false
	}
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return Line{}, false
		}
	}

	if n == 2 {
		a, b := points[0], points[1]
		if a.X == b.X {
			return Line{}, false
		}
		slope := (b.Y - a.Y) / (b.X - a.X)
		return Line{Slope: slope, Intercept: a.Y - slope*a.X, RSquared: 1, Touches: 2}, true
	}

	tol := cfg.Tolerance
	if tol <= 0 || !finite(tol) {
		tol = 1e-9
	}

	var (
		best      Line
		bestCount = -1
		bestSSR   = math.Inf(1)
		found     bool
	)
	consider := func(i, j int) {
		a, b := points[i], points[j]
		if a.X == b.X {
			return
		}
		slope := (b.Y - a.Y) / (b.X - a.X)
		candidate := Line{Slope: slope, Intercept: a.Y - slope*a.X}
		count, ssr := consensus(points, candidate, tol)
		if count > bestCount || (count == bestCount && ssr < bestSSR) {
			best, bestCount, bestSSR, found = candidate, count, ssr, true
		}
	}

	pairs := n * (n - 1) / 2
	limit := cfg.MaxIterations
	if limit <= 0 {
		limit = 200
	}
	if pairs <= limit {
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				consider(i, j)
			}
		}
	} else {
		rng := rand.New(rand.NewSource(cfg.Seed))
		for k := 0; k < limit; k++ {
			i := rng.Intn(n)
			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			consider(min(i, j), max(i, j))
		}
	}
	if !found {
		return Line{}, false
	}

	inliers := make([]Point, 0, bestCount)
	for _, p := range points {
		if math.Abs(p.Y-best.At(p.X)) <= tol {
			inliers = append(inliers, p)
		}
	}

	line, ok := leastSquares(inliers)
	if !ok {
		line = best
	}
	line.RSquared = rSquared(inliers, line)
	// The refit may move the line; touches are counted against the final fit
	// but never fewer than the consensus that selected it.
	count, _ := consensus(points, line, tol)
	line.Touches = max(count, bestCount)
	return line, true
}

func consensus(points []Point, l Line, tol float64) (int, float64) {
	var count int
	var ssr float64
	for _, p := range points {
		r := p.Y - l.At(p.X)
		if math.Abs(r) <= tol {
			count++
			ssr += r * r
		}
	}
	return count, ssr
}

// leastSquares fits an ordinary least-squares line; it fails on fewer than two
// points or zero variance in X.
func leastSquares(points []Point) (Line, bool) {
	n := float64(len(points))
	if len(points) < 2 {
		return Line{}, false
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	mx, my := sx/n, sy/n
	var sxx, sxy float64
	for _, p := range points {
		sxx += (p.X - mx) * (p.X - mx)
		sxy += (p.X - mx) * (p.Y - my)
	}
	if sxx == 0 {
		return Line{}, false
	}
	slope := sxy / sxx
	return Line{Slope: slope, Intercept: my - slope*mx}, true
}

// rSquared is the coefficient of determination of l over points. A set with
// no variance in Y scores 1 when the line passes through it exactly and 0
// otherwise.
func rSquared(points []Point, l Line) float64 {
	if len(points) == 0 {
		return 0
	}
	var my float64
	for _, p := range points {
		my += p.Y
	}
	my /= float64(len(points))

	var ssRes, ssTot float64
	for _, p := range points {
		r := p.Y - l.At(p.X)
		ssRes += r * r
		ssTot += (p.Y - my) * (p.Y - my)
	}
	if ssTot == 0 {
		if ssRes < 1e-12 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-ssRes/ssTot)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
