package kpi

// ClassifyTrend compares the mean of the most recent window of points against
// the mean of the window immediately before it. Windows hold up to
// t.TrendWindow points each. A series with fewer than two points, or one
// that fits entirely in the recent window, is stable.
//
// The comparison is on raw values: a rising series is "improving" whatever
// the metric's direction. Use ClassifyTrendFor for direction-aware results.
func ClassifyTrend(series []TrendPoint, t Thresholds) Trend {
	trend := Trend{Direction: TrendStable, Points: len(series)}
	if len(series) < 2 {
		return trend
	}

	window := t.TrendWindow
	if window < 1 {
		window = DefaultThresholds().TrendWindow
	}

	recentStart := max(0, len(series)-window)
	previousStart := max(0, recentStart-window)
	recent := series[recentStart:]
	previous := series[previousStart:recentStart]
	if len(previous) == 0 {
		return trend
	}

	trend.RecentMean = mean(recent)
	trend.PreviousMean = mean(previous)
	trend.Delta = trend.RecentMean - trend.PreviousMean

	switch {
	case trend.Delta > t.TrendNoiseFloor:
		trend.Direction = TrendImproving
	case trend.Delta < -t.TrendNoiseFloor:
		trend.Direction = TrendDeclining
	}
	return trend
}

// ClassifyTrendFor is ClassifyTrend with the verdict flipped for
// lower-is-better metrics, so a falling churn rate reads as improving.
func ClassifyTrendFor(series []TrendPoint, d Direction, t Thresholds) Trend {
	trend := ClassifyTrend(series, t)
	if d != LowerIsBetter {
		return trend
	}
	switch trend.Direction {
	case TrendImproving:
		trend.Direction = TrendDeclining
	case TrendDeclining:
		trend.Direction = TrendImproving
	}
	return trend
}

func mean(points []TrendPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
