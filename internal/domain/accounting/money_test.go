package accounting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCentsToMajor(t *testing.T) {
	assert.True(t, decimal.NewFromFloat(1234.56).Equal(CentsToMajor(123456)))
	assert.True(t, decimal.Zero.Equal(CentsToMajor(0)))
	assert.True(t, decimal.NewFromFloat(-0.05).Equal(CentsToMajor(-5)))
}

func TestMajorToCents(t *testing.T) {
	tests := []struct {
		name  string
		major string
		want  int64
	}{
		{"exact", "1234.56", 123456},
		{"whole rand", "500", 50000},
		{"round half to even down", "10.005", 1000}, // 1000.5 -> 1000
		{"round half to even up", "10.015", 1002},   // 1001.5 -> 1002
		{"negative", "-33.33", -3333},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.major)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, MajorToCents(d))
		})
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 123456, -250} {
		assert.Equal(t, cents, MajorToCents(CentsToMajor(cents)))
	}
}
