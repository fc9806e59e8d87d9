package availability_test

import (
	"testing"
	"time"

	"github.com/mauv0809/tourney/internal/availability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r, err := availability.ParseRange("10:30-18:00")
		require.NoError(t, err)
		assert.Equal(t, availability.Range{Start: 630, End: 1080}, r)
		assert.Equal(t, "10:30-18:00", r.String())
	})

	t.Run("tolerates spaces", func(t *testing.T) {
		r, err := availability.ParseRange(" 09:00 - 11:00 ")
		require.NoError(t, err)
		assert.Equal(t, 540, r.Start)
	})

	for _, bad := range []string{"", "10:00", "10:00-", "25:00-26:00", "aa:bb-cc:dd", "10:00-11:00-12:00"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := availability.ParseRange(bad)
			assert.ErrorIs(t, err, availability.ErrFormat)
		})
	}
}

func TestSentinelNeverOverlaps(t *testing.T) {
	sentinel, err := availability.ParseRange(availability.Unavailable)
	require.NoError(t, err)
	assert.True(t, sentinel.Empty())

	for _, other := range []string{"00:00-23:59", "00:00-00:01", "10:00-12:00", availability.Unavailable} {
		r, err := availability.ParseRange(other)
		require.NoError(t, err)
		_, ok := availability.Intersect(sentinel, r)
		assert.False(t, ok, "sentinel against %s", other)
		_, ok = availability.Intersect(r, sentinel)
		assert.False(t, ok, "%s against sentinel", other)
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
		ok   bool
	}{
		{"overlap", "10:00-14:00", "12:00-16:00", "12:00-14:00", true},
		{"contained", "08:00-20:00", "12:00-13:00", "12:00-13:00", true},
		{"touching", "10:00-12:00", "12:00-14:00", "", false},
		{"disjoint", "10:00-12:00", "14:00-16:00", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := availability.ParseRange(tt.a)
			b, _ := availability.ParseRange(tt.b)
			got, ok := availability.Intersect(a, b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
			back, ok := availability.Intersect(b, a)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, got, back)
		})
	}
}

func TestIntersectAllIsOrderIndependent(t *testing.T) {
	a, _ := availability.ParseRange("08:00-18:00")
	b, _ := availability.ParseRange("10:00-20:00")
	c, _ := availability.ParseRange("09:00-16:00")

	want, ok := availability.IntersectAll(a, b, c)
	require.True(t, ok)
	assert.Equal(t, "10:00-16:00", want.String())

	for _, order := range [][]availability.Range{{c, b, a}, {b, a, c}, {a, c, b}} {
		got, ok := availability.IntersectAll(order...)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok = availability.IntersectAll()
	assert.False(t, ok)
}

func TestMergeAndAround(t *testing.T) {
	a, _ := availability.ParseRange("10:00-12:00")
	b, _ := availability.ParseRange("15:00-17:00")
	assert.Equal(t, "10:00-17:00", availability.Merge(a, b).String())
	assert.Equal(t, a, availability.Merge(a, availability.Range{}))

	slot := time.Date(2026, 11, 7, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "13:00-15:00", availability.Around(slot, time.Hour).String())

	late := time.Date(2026, 11, 7, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "22:30-23:59", availability.Around(late, time.Hour).String())
}

func TestWeek(t *testing.T) {
	sat := time.Date(2026, 11, 7, 11, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, sat.Weekday())

	t.Run("empty week is fully unavailable", func(t *testing.T) {
		w := availability.Week{}
		assert.False(t, w.Any())
		assert.False(t, w.AvailableAt(sat))
		_, ok := w.EarliestStart()
		assert.False(t, ok)
	})

	t.Run("set and query", func(t *testing.T) {
		w := availability.NewWeek()
		require.NoError(t, w.SetRaw("Saturday", "10:00-12:00"))
		require.NoError(t, w.SetRaw("sunday", "09:30-20:00"))
		assert.True(t, w.AvailableAt(sat))
		assert.False(t, w.AvailableAt(sat.Add(2*time.Hour)))
		start, ok := w.EarliestStart()
		require.True(t, ok)
		assert.Equal(t, 570, start)
	})

	t.Run("bad day or range", func(t *testing.T) {
		w := availability.NewWeek()
		assert.ErrorIs(t, w.SetRaw("someday", "10:00-12:00"), availability.ErrFormat)
		assert.ErrorIs(t, w.SetRaw("monday", "10-12"), availability.ErrFormat)
	})

	t.Run("intersect week writes sentinel", func(t *testing.T) {
		a := availability.Week{"saturday": "10:00-14:00", "sunday": "10:00-12:00"}
		b := availability.Week{"saturday": "12:00-16:00", "sunday": "13:00-15:00"}
		got := availability.IntersectWeek(a, b)
		assert.Equal(t, "12:00-14:00", got["saturday"])
		assert.Equal(t, availability.Unavailable, got["sunday"])
		assert.Equal(t, availability.Unavailable, got["monday"])
		assert.True(t, availability.Overlaps(a, b, time.Saturday))
		assert.False(t, availability.Overlaps(a, b, time.Sunday))
	})

	t.Run("extend merges into existing day", func(t *testing.T) {
		w := availability.Week{"saturday": "10:00-12:00"}
		w.Extend(time.Saturday, availability.Range{Start: 13 * 60, End: 15 * 60})
		assert.Equal(t, "10:00-15:00", w["saturday"])
		w.Extend(time.Sunday, availability.Range{Start: 13 * 60, End: 15 * 60})
		assert.Equal(t, "13:00-15:00", w["sunday"])
	})
}
