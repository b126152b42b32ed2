package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

// assertCounter checks the contamination invariants: zeros, then 1, 2, 3...
func assertCounter(t *testing.T, days []int) {
	t.Helper()
	started := false
	for i, d := range days {
		if !started {
			if d == 0 {
				continue
			}
			started = true
			assert.Equal(t, 1, d, "first nonzero value at %d", i)
			continue
		}
		assert.Equal(t, days[i-1]+1, d, "position %d", i)
	}
}

func firstNonZero(days []int) int {
	for i, d := range days {
		if d != 0 {
			return i
		}
	}
	return -1
}

func TestContaminationDaysNational(t *testing.T) {
	nation := NewTable(testutil.NationalRecords())

	tests := []struct {
		minCases  int
		wantFirst int
	}{
		{1, 6},      // 2020-02-26
		{101, 23},   // 2020-03-14
		{10001, 44}, // 2020-04-04
	}

	for _, tt := range tests {
		days := ContaminationDays(nation, tt.minCases)
		require.Len(t, days, nation.Len())
		assertCounter(t, days)
		assert.Equal(t, tt.wantFirst, firstNonZero(days), "minCases %d", tt.minCases)
		assert.Equal(t, nation.Len()-tt.wantFirst, days[len(days)-1])
	}
}

func TestContaminationDaysEdgeCases(t *testing.T) {
	t.Run("contaminated from the first date", func(t *testing.T) {
		records := testutil.NationalRecords()[10:]
		days := ContaminationDays(NewTable(records), 1)
		assert.Equal(t, 1, days[0])
		assert.Equal(t, len(records), days[len(days)-1])
	})

	t.Run("threshold never reached", func(t *testing.T) {
		records := testutil.NationalRecords()[:5]
		days := ContaminationDays(NewTable(records), 1)
		assert.Equal(t, []int{0, 0, 0, 0, 0}, days)
	})

	t.Run("empty table", func(t *testing.T) {
		assert.Empty(t, ContaminationDays(NewTable(nil), 1))
	})

	t.Run("non-positive minimum uses the default", func(t *testing.T) {
		nation := NewTable(testutil.NationalRecords())
		assert.Equal(t, ContaminationDays(nation, DefaultMinCases), ContaminationDays(nation, 0))
	})

	t.Run("single row", func(t *testing.T) {
		r := []domain.Record{{Date: testutil.FixtureDate(0), CumulativeCases: 5}}
		assert.Equal(t, []int{1}, ContaminationDays(NewTable(r), 5))
		assert.Equal(t, []int{0}, ContaminationDays(NewTable(r), 6))
	})
}

func TestContaminationDaysLengthProperty(t *testing.T) {
	records := testutil.NationalRecords()
	for n := 0; n <= len(records); n += 5 {
		table := NewTable(records[:n])
		for _, minCases := range []int{1, 2, 100, 5000} {
			days := ContaminationDays(table, minCases)
			assert.Len(t, days, n)
			assertCounter(t, days)
		}
	}
}
