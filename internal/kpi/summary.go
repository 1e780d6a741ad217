package kpi

// Summary counts statuses across a classified batch.
type Summary struct {
	Total  int `json:"total"`
	Green  int `json:"green"`
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
	Gray   int `json:"gray"`

	// OnTrackPercent is Green over all non-gray metrics, 0 when every metric
	// is gray.
	OnTrackPercent float64 `json:"on_track_percent"`
}

// Summarize counts the statuses in classified.
func Summarize(classified []ClassifiedMetric) Summary {
	s := Summary{Total: len(classified)}
	for _, c := range classified {
		switch c.Status {
		case StatusGreen:
			s.Green++
		case StatusYellow:
			s.Yellow++
		case StatusRed:
			s.Red++
		default:
			s.Gray++
		}
	}
	if measured := s.Total - s.Gray; measured > 0 {
		s.OnTrackPercent = float64(s.Green) / float64(measured) * 100
	}
	return s
}
