package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 4, 1, 9, 30, 5, 0, time.UTC)

	tests := []struct {
		name string
		want string
	}{
		{name: "prices", want: "20260401_093005_prices.html"},
		{name: "US Prices!", want: "20260401_093005_US_Prices_.html"},
		{name: "a/b\\c", want: "20260401_093005_a_b_c.html"},
		{name: "v1.2-rc_3", want: "20260401_093005_v1.2-rc_3.html"},
		{name: "café", want: "20260401_093005_caf_.html"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Filename(at, tt.name), "name %q", tt.name)
	}
}

func TestFilenameUsesUTC(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*60*60)
	at := time.Date(2026, 4, 1, 9, 30, 5, 0, est)
	require.Equal(t, "20260401_143005_prices.html", Filename(at, "prices"))
}
