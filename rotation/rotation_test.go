package rotation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpZeroIsExactIdentity(t *testing.T) {
	r := Exp([3]float64{0, 0, 0})
	assert.Equal(t, Identity().Matrix(), r.Matrix())
}

func TestExpLogRoundTrip(t *testing.T) {
	cases := [][3]float64{
		{0, 0, 0},
		{0.001, 0, 0},
		{0, 0.3, 0},
		{0.2, -0.4, 0.6},
		{math.Pi / 2, 0, 0},
		{1e-10, 1e-10, -1e-10},
	}
	for _, w := range cases {
		r := Exp(w)
		back := Log(r)
		gotBack := Exp(back)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, r.Matrix()[i][j], gotBack.Matrix()[i][j], 1e-9)
			}
		}
	}
}

func TestExpIsOrthonormal(t *testing.T) {
	r := Exp([3]float64{0.3, -0.6, 0.9})
	m := r.Matrix()
	prod := matMul3(m, r.Transpose().Matrix())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, prod[i][j], 1e-8)
		}
	}
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	assert.InDelta(t, 1.0, det, 1e-8)
}

func TestHatVeeRoundTrip(t *testing.T) {
	w := [3]float64{0.1, -0.2, 0.3}
	require.Equal(t, w, Vee(Hat(w)))
}

func TestQuaternionOfIdentity(t *testing.T) {
	w, x, y, z := Identity().Quaternion()
	assert.InDelta(t, 1.0, w, 1e-12)
	assert.InDelta(t, 0.0, x, 1e-12)
	assert.InDelta(t, 0.0, y, 1e-12)
	assert.InDelta(t, 0.0, z, 1e-12)
}

func TestFromYawDegMatchesHeading(t *testing.T) {
	r := FromYawDeg(90)
	v := r.Apply([3]float64{1, 0, 0})
	assert.InDelta(t, 0.0, v[0], 1e-9)
	assert.InDelta(t, 1.0, v[1], 1e-9)
}
