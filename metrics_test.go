package copilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	assert := assert.New(t)

	m := Snapshot(MetricsInput{
		Documents: 3,
		Chunks:    12,
		Latencies: []int64{100, 200},
		Ratings:   []int{5},
	})

	assert.Equal(3, m.Documents)
	assert.Equal(12, m.Chunks)
	assert.Equal(2, m.Queries)
	assert.Equal(150.0, m.AvgQueryLatencyMS)
	assert.Equal(1, m.FeedbackCount)

	if assert.NotNil(m.AvgFeedbackRating) {
		assert.Equal(5.0, *m.AvgFeedbackRating)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	assert := assert.New(t)

	m := Snapshot(MetricsInput{})

	assert.Equal(0, m.Queries)
	assert.Equal(0.0, m.AvgQueryLatencyMS)
	assert.Equal(0, m.FeedbackCount)
	assert.Nil(m.AvgFeedbackRating)
}

func TestSnapshotRounding(t *testing.T) {
	assert := assert.New(t)

	m := Snapshot(MetricsInput{
		Latencies: []int64{1, 2, 2},
		Ratings:   []int{4, 4, 5},
	})

	assert.Equal(1.67, m.AvgQueryLatencyMS)
	assert.Equal(4.33, *m.AvgFeedbackRating)
}
