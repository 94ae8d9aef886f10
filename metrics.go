package copilot

import "math"

// MetricsInput holds the raw figures a Metrics snapshot is reduced from.
// Ratings only contains ratings that were actually given.
type MetricsInput struct {
	Documents int
	Chunks    int
	Latencies []int64
	Ratings   []int
}

func Snapshot(in MetricsInput) Metrics {
	m := Metrics{
		Documents:     in.Documents,
		Chunks:        in.Chunks,
		Queries:       len(in.Latencies),
		FeedbackCount: len(in.Ratings),
	}

	if len(in.Latencies) > 0 {
		var total int64
		for _, latency := range in.Latencies {
			total += latency
		}

		m.AvgQueryLatencyMS = round(float64(total)/float64(len(in.Latencies)), 2)
	}

	if len(in.Ratings) > 0 {
		var total int
		for _, rating := range in.Ratings {
			total += rating
		}

		avg := round(float64(total)/float64(len(in.Ratings)), 2)
		m.AvgFeedbackRating = &avg
	}

	return m
}

func round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
