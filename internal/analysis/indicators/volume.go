package indicators

import "math"

// VolumeZScore returns the rolling z-score (value - mean) / stdev of volume
// over window bars. A window with zero deviation yields 0. Positions before
// the first full window are missing.
func VolumeZScore(volume []float64, window int) Series {
	n := len(volume)
	result := NewSeries(n)
	if window <= 1 || n < window {
		return result
	}

	for i := window - 1; i < n; i++ {
		slice := volume[i-window+1 : i+1]
		m := Mean(slice)
		sd := StdDev(slice)
		if sd == 0 || math.IsNaN(sd) {
			result[i] = 0
			continue
		}
		result[i] = (volume[i] - m) / sd
	}
	return result
}

// VolumeZAt returns the z-score of volume[i] against the window bars ending at
// i, or 0 when i is inside the warm-up window.
func VolumeZAt(volume []float64, i, window int) float64 {
	if i < 0 || i >= len(volume) || window <= 1 {
		return 0
	}
	from := i - window + 1
	if from < 0 {
		return 0
	}
	slice := volume[from : i+1]
	sd := StdDev(slice)
	if sd == 0 {
		return 0
	}
	return (volume[i] - Mean(slice)) / sd
}

// AverageVolume returns the mean of volume over [from, to], clamped to the
// slice bounds. An empty range yields 0.
func AverageVolume(volume []float64, from, to int) float64 {
	from, to = clampRange(len(volume), from, to)
	if from > to {
		return 0
	}
	return Mean(volume[from : to+1])
}
