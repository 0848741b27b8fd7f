package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		percent    int64
		total      int64
		wantFee    int64
		wantSeller int64
	}{
		{"ten percent", 10, 10000, 1000, 9000},
		{"zero disables fee", 0, 10000, 0, 10000},
		{"negative treated as disabled", -5, 10000, 0, 10000},
		{"truncates toward zero", 33, 101, 33, 68},
		{"full fee", 100, 500, 500, 0},
		{"one cent", 10, 1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, seller := Calculator{Percent: tt.percent}.Split(tt.total)
			require.Equal(t, tt.wantFee, fee)
			require.Equal(t, tt.wantSeller, seller)
			require.Equal(t, tt.total, fee+seller)
		})
	}
}
