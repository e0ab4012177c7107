package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"TradeSignal/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardize(t *testing.T) {
	m := models.IndicatorMatrix{{1, 7}, {2, 7}, {3, 7}}
	got := Standardize(m)
	z := 1 / math.Sqrt(2.0/3.0)
	assert.InDelta(t, -z, got[0][0], 1e-12)
	assert.InDelta(t, 0.0, got[1][0], 1e-12)
	assert.InDelta(t, z, got[2][0], 1e-12)
	// constant column is left as is
	for i := range got {
		assert.Equal(t, 7.0, got[i][1])
	}
	// input untouched
	assert.Equal(t, 1.0, m[0][0])
}

func TestStandardizeIdempotent(t *testing.T) {
	m := Extract(rampWindow(30, 50))
	once := Standardize(m)
	twice := Standardize(once)
	for i := range once {
		for f := range once[i] {
			assert.InDelta(t, once[i][f], twice[i][f], 1e-9, "row %d channel %d", i, f)
		}
	}
}

func TestStandardizeNarrowColumnNearOne(t *testing.T) {
	// RSI of a steady ramp sits just below 1 with a spread around 1e-11
	m := make(models.IndicatorMatrix, 30)
	for i := range m {
		m[i] = []float64{0.9999999997 + float64(i)*2e-12, float64(i)}
	}
	once := Standardize(m)
	twice := Standardize(once)

	var mean float64
	for i := range once {
		mean += once[i][0]
	}
	assert.InDelta(t, 0.0, mean/float64(len(once)), 1e-9)
	for i := range once {
		assert.InDelta(t, once[i][0], twice[i][0], 1e-9, "row %d", i)
	}
}

func TestPackFixedWidth(t *testing.T) {
	assert.Equal(t, models.FeatureVector{1, 2, 0, 0}, PackFixedWidth([]float64{1, 2}, 4))
	assert.Equal(t, models.FeatureVector{1, 2}, PackFixedWidth([]float64{1, 2, 3}, 2))
}

func TestNormalizeSanitizes(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	m := models.IndicatorMatrix{{nan, inf, -inf, 1}}
	got := Normalize(m)
	require.Len(t, got, models.FeatureVectorSize)
	assert.Equal(t, []float64{0, 1, -1, 1}, []float64(got[:4]))
	for _, v := range got[4:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestNormalizeRowMajor(t *testing.T) {
	m := Extract(rampWindow(30, 100))
	std := Standardize(m)
	vec := Normalize(m)
	require.Len(t, vec, models.FeatureVectorSize)
	assert.InDelta(t, std[0][models.ChanRelLow], vec[models.ChanRelLow], 1e-12)
	assert.InDelta(t, std[1][models.ChanRelClose], vec[models.NumChannels], 1e-12)
	assert.InDelta(t, std[8][4], vec[8*models.NumChannels+4], 1e-12)
}

func TestBuildFeatureVectorFixedLength(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8, 9, 14, 20, 30, 60, 250} {
		vec, err := BuildFeatureVector(rampWindow(n, 10))
		require.NoError(t, err, "W=%d", n)
		assert.Len(t, vec, models.FeatureVectorSize, "W=%d", n)
	}
}

func TestBuildFeatureVectorAlwaysFinite(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		w := models.PriceWindow{
			Close:  make([]float64, 30),
			Low:    make([]float64, 30),
			High:   make([]float64, 30),
			Volume: make([]float64, 30),
		}
		for i := 0; i < 30; i++ {
			w.Close[i] = rng.Float64() * 200
			w.Low[i] = rng.Float64() * 200
			w.High[i] = rng.Float64() * 200
			w.Volume[i] = float64(rng.Intn(5)) * 1000
		}
		if trial%5 == 0 {
			w.Close[0], w.Volume[0] = 0, 0
		}
		vec, err := BuildFeatureVector(w)
		require.NoError(t, err)
		require.Len(t, vec, models.FeatureVectorSize)
		for i, v := range vec {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "trial %d index %d: %v", trial, i, v)
		}
	}
}

func TestBuildFeatureVectorConstantWindow(t *testing.T) {
	vec, err := BuildFeatureVector(constWindow(30, 100))
	require.NoError(t, err)
	for _, v := range vec {
		assert.Equal(t, 0.0, v)
	}
}

func TestValidateWindow(t *testing.T) {
	w := rampWindow(10, 100)
	w.Low = w.Low[:9]
	err := ValidateWindow(w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInputShape))
	var se *models.InputShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "low", se.Field)
	assert.Equal(t, 10, se.Expected)
	assert.Equal(t, 9, se.Actual)

	assert.ErrorIs(t, ValidateWindow(models.PriceWindow{}), models.ErrInputShape)

	neg := rampWindow(5, 100)
	neg.Volume[2] = -1
	assert.ErrorIs(t, ValidateWindow(neg), models.ErrInputShape)

	bad := rampWindow(5, 100)
	bad.High[3] = math.Inf(1)
	assert.ErrorIs(t, ValidateWindow(bad), models.ErrInputShape)
}
