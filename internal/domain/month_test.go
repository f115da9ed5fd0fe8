package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{in: "2023-05", want: NewMonth(2023, time.May)},
		{in: "2022-10", want: DataFloor},
		{in: "2023-12", want: NewMonth(2023, time.December)},
		{in: "2023-5", wantErr: true},
		{in: "2023/05", wantErr: true},
		{in: "2023-13", wantErr: true},
		{in: "2023-00", wantErr: true},
		{in: "20a3-05", wantErr: true},
		{in: "", wantErr: true},
		{in: "2023-05-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMonthFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestMonth_NextPrev(t *testing.T) {
	dec := NewMonth(2022, time.December)
	assert.Equal(t, NewMonth(2023, time.January), dec.Next())
	assert.Equal(t, dec, dec.Next().Prev())
	assert.True(t, dec.Before(dec.Next()))
	assert.True(t, dec.Next().After(dec))
	assert.False(t, dec.After(dec))
}

func TestMonthRange(t *testing.T) {
	got := MonthRange(MustParseMonth("2022-11"), MustParseMonth("2023-02"))
	assert.Equal(t, []Month{
		MustParseMonth("2022-11"),
		MustParseMonth("2022-12"),
		MustParseMonth("2023-01"),
		MustParseMonth("2023-02"),
	}, got)

	single := MonthRange(DataFloor, DataFloor)
	assert.Equal(t, []Month{DataFloor}, single)

	assert.Empty(t, MonthRange(MustParseMonth("2023-02"), MustParseMonth("2023-01")))
}

func TestValidateMonth(t *testing.T) {
	mostRecent := MustParseMonth("2024-09")

	t.Run("floor accepted", func(t *testing.T) {
		m, err := ValidateMonth("2022-10", mostRecent)
		require.NoError(t, err)
		assert.Equal(t, DataFloor, m)
	})

	t.Run("before floor rejected", func(t *testing.T) {
		_, err := ValidateMonth("2022-09", mostRecent)
		assert.ErrorIs(t, err, ErrBeforeDataFloor)
		assert.False(t, IsWarning(err))
	})

	t.Run("bad format rejected", func(t *testing.T) {
		_, err := ValidateMonth("2023-13", mostRecent)
		assert.ErrorIs(t, err, ErrInvalidMonthFormat)
		assert.False(t, IsWarning(err))
	})

	t.Run("most recent accepted", func(t *testing.T) {
		_, err := ValidateMonth("2024-09", mostRecent)
		assert.NoError(t, err)
	})

	t.Run("after most recent is a warning", func(t *testing.T) {
		m, err := ValidateMonth("2024-10", mostRecent)
		require.Error(t, err)
		assert.True(t, IsWarning(err))
		assert.Equal(t, MustParseMonth("2024-10"), m)
	})

	t.Run("unknown most recent skips the check", func(t *testing.T) {
		_, err := ValidateMonth("2030-01", Month{})
		assert.NoError(t, err)
	})
}

func TestMonth_TextEncoding(t *testing.T) {
	counts := map[Month]int{MustParseMonth("2023-05"): 3}
	b, err := json.Marshal(counts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2023-05":3}`, string(b))

	var m Month
	require.NoError(t, json.Unmarshal([]byte(`"2023-06"`), &m))
	assert.Equal(t, MustParseMonth("2023-06"), m)

	require.NoError(t, m.Scan([]byte("2024-01")))
	assert.Equal(t, MustParseMonth("2024-01"), m)
}
