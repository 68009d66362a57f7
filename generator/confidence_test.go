package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdsClassify(t *testing.T) {
	th := Thresholds{High: 0.8, Medium: 0.5}
	tests := []struct {
		score float64
		want  Band
	}{
		{1, BandHigh},
		{0.8, BandHigh},
		{0.79, BandMedium},
		{0.5, BandMedium},
		{0.49, BandLow},
		{0, BandLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %.2f", tt.score)
	}
	assert.True(t, th.Trusted(0.85))
	assert.False(t, th.Trusted(0.6))
}
