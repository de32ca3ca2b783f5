package ephemeris

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/pkg/config"
	"github.com/wonny/lunaris/pkg/httputil"
	"github.com/wonny/lunaris/pkg/logger"
)

// angularDistance returns the shortest distance between two angles in degrees
func angularDistance(a, b float64) float64 {
	d := math.Abs(Normalize(a) - Normalize(b))
	return math.Min(d, 360-d)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"in range", 123.5, 123.5},
		{"full turn", 360, 0},
		{"several turns", 725, 5},
		{"negative", -45, 315},
		{"negative turns", -405, 315},
		{"tiny negative", -1e-15, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(time.Time) float64 { return -90 })

	got, err := f.Angle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 270.0, got)
}

func TestLinear(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	oracle := Linear{Epoch: epoch, DegreesPerDay: 13}
	ctx := context.Background()

	t.Run("angle at epoch is offset", func(t *testing.T) {
		got, err := Linear{Epoch: epoch, Offset: 10, DegreesPerDay: 13}.Angle(ctx, epoch)
		require.NoError(t, err)
		assert.InDelta(t, 10, got, 1e-9)
	})

	t.Run("advances at rate", func(t *testing.T) {
		got, err := oracle.Angle(ctx, epoch.Add(48*time.Hour))
		require.NoError(t, err)
		assert.InDelta(t, 26, got, 1e-9)
	})

	t.Run("wraps past a full turn", func(t *testing.T) {
		got, err := oracle.Angle(ctx, epoch.Add(30*24*time.Hour))
		require.NoError(t, err)
		assert.InDelta(t, 30, got, 1e-9) // 390 mod 360
	})

	t.Run("crossing instants", func(t *testing.T) {
		hoursTo45 := 45.0 / 13 * 24
		hoursToTurn := 360.0 / 13 * 24

		crossing := oracle.CrossingAt(0, 45)
		expected := epoch.Add(time.Duration(hoursTo45 * float64(time.Hour)))
		assert.WithinDuration(t, expected, crossing, time.Millisecond)

		angle, err := oracle.Angle(ctx, crossing)
		require.NoError(t, err)
		assert.InDelta(t, 45, angle, 1e-6)

		second := oracle.CrossingAt(1, 0)
		assert.WithinDuration(t, epoch.Add(time.Duration(hoursToTurn*float64(time.Hour))), second, time.Millisecond)
	})
}

func TestElongationKnownPhases(t *testing.T) {
	ctx := context.Background()
	oracle := Elongation{}

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"new moon 2024-01-11", time.Date(2024, 1, 11, 11, 57, 0, 0, time.UTC), 0},
		{"first quarter 2024-01-18", time.Date(2024, 1, 18, 3, 52, 0, 0, time.UTC), 90},
		{"full moon 2024-01-25", time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC), 180},
		{"last quarter 2024-02-02", time.Date(2024, 2, 2, 23, 18, 0, 0, time.UTC), 270},
		{"new moon 2000-01-06", time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oracle.Angle(ctx, tt.at)
			require.NoError(t, err)
			// Elongation moves ~0.5°/hour; 0.5° is about one hour of phase time
			assert.Less(t, angularDistance(got, tt.want), 0.5, "got %.4f", got)
		})
	}
}

func TestElongationIncreasesOverShortSpans(t *testing.T) {
	ctx := context.Background()
	oracle := Elongation{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	prev, err := oracle.Angle(ctx, start)
	require.NoError(t, err)

	for i := 1; i <= 24*60; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		cur, err := oracle.Angle(ctx, at)
		require.NoError(t, err)

		// unwrap: hourly advance is between ~0.4° and ~0.7°
		delta := Normalize(cur - prev)
		assert.Greater(t, delta, 0.3, "at %s", at)
		assert.Less(t, delta, 0.8, "at %s", at)
		prev = cur
	}
}

func TestElongationOutsideRange(t *testing.T) {
	ctx := context.Background()
	oracle := Elongation{}

	_, err := oracle.Angle(ctx, time.Date(1899, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrOutsideEphemeris)

	_, err = oracle.Angle(ctx, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrOutsideEphemeris)

	_, err = oracle.Angle(ctx, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}

func TestValidateRange(t *testing.T) {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateRange(Elongation{}, start, end))
	assert.ErrorIs(t, ValidateRange(Elongation{}, time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC), end), ErrOutsideEphemeris)
	assert.ErrorIs(t, ValidateRange(Elongation{}, start, time.Date(2150, 1, 1, 0, 0, 0, 0, time.UTC)), ErrOutsideEphemeris)

	// oracles without a bounded range always pass
	assert.NoError(t, ValidateRange(Linear{}, time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC), end))
}

func newTestClient() *httputil.Client {
	cfg := &config.Config{Env: "development", LogLevel: "error"}
	cfg.Oracle.Timeout = 2 * time.Second
	return httputil.New(cfg, logger.Nop()).DisableRetry()
}

func TestRemote(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/elongation" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("at") {
		case "2024-01-01T00:00:00Z":
			_, _ = w.Write([]byte(`{"angle_deg": 370.5}`))
		case "2024-01-02T00:00:00Z":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`bad instant`))
		}
	}))
	defer srv.Close()

	oracle := NewRemote(srv.URL+"/", newTestClient())
	ctx := context.Background()

	t.Run("normalizes the returned angle", func(t *testing.T) {
		// non-UTC input is converted before the request
		at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
		got, err := oracle.Angle(ctx, at)
		require.NoError(t, err)
		assert.InDelta(t, 10.5, got, 1e-9)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := oracle.Angle(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "angle_deg")
	})

	t.Run("non-2xx status", func(t *testing.T) {
		_, err := oracle.Angle(ctx, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)

		var statusErr *httputil.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	})

	assert.Equal(t, int32(3), calls.Load())
}

func TestEphemerisDayAddsDeltaT(t *testing.T) {
	tests := []struct {
		name       string
		at         time.Time
		minS, maxS float64
	}{
		{"1950 table", time.Date(1950, 6, 1, 0, 0, 0, 0, time.UTC), 20, 40},
		{"2024 polynomial", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			utDay := float64(tt.at.Unix())/86400 + 2440587.5
			dt := (ephemerisDay(tt.at) - utDay) * 86400
			assert.GreaterOrEqual(t, dt, tt.minS)
			assert.LessOrEqual(t, dt, tt.maxS)
		})
	}
}

func TestIdentity(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		oracle contracts.AngleOracle
		wantID string
		wantOK bool
	}{
		{"meeus", Elongation{}, "meeus", true},
		{"remote", NewRemote("http://ephemeris.local/", nil), "remote:http://ephemeris.local", true},
		{"linear", Linear{Epoch: epoch, DegreesPerDay: 13}, "linear:2024-01-01T00:00:00Z:0:13", true},
		{"func is anonymous", Func(func(time.Time) float64 { return 0 }), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Identity(tt.oracle)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}

	a, _ := Identity(Linear{Epoch: epoch, DegreesPerDay: 13})
	b, _ := Identity(Linear{Epoch: epoch, Offset: 100, DegreesPerDay: 20})
	assert.NotEqual(t, a, b)
}
