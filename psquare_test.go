package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPSquareQuantile_ApproximatesMedian(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ps := newPSquareQuantile(0.5)
	var values []float64
	for i := 0; i < 5000; i++ {
		v := r.Float64() * 100
		values = append(values, v)
		ps.Update(v)
	}

	// Exact median via sort, compared against the streaming estimate.
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}
	exactMedian := sorted[len(sorted)/2]

	assert.InDelta(t, exactMedian, ps.Quantile(), 5, "P-Square estimate should track the true median within tolerance")
	assert.Equal(t, 5000, ps.Count())
}

func TestPSquareQuantile_FewSamples(t *testing.T) {
	ps := newPSquareQuantile(0.9)
	ps.Update(1)
	ps.Update(2)
	ps.Update(3)
	assert.Equal(t, 3, ps.Count())
	assert.Greater(t, ps.Quantile(), 0.0)
}

func TestPSquareMultiQuantile_TracksSumAndMax(t *testing.T) {
	m := newPSquareMultiQuantile(0.5, 0.99)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		m.Update(v)
	}
	assert.Equal(t, 5, m.Count())
	assert.Equal(t, 15.0, m.sum)
	assert.Equal(t, 5.0, m.max)
	assert.Equal(t, 3.0, m.Mean())
	assert.InDelta(t, 3, m.Quantile(0), 2)
}

func TestPSquareQuantile_ClampsPercentile(t *testing.T) {
	ps := newPSquareQuantile(2.0)
	assert.Equal(t, 1.0, ps.p)
	ps2 := newPSquareQuantile(-1.0)
	assert.Equal(t, 0.0, ps2.p)
}
