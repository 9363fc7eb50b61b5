package daterange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanInclusive(t *testing.T) {
	days, err := Plan("28/02/2024", "02/03/2024", nil)
	require.NoError(t, err)

	var got []string
	for _, d := range days {
		got = append(got, Format(d))
	}
	assert.Equal(t, []string{"28/02/2024", "29/02/2024", "01/03/2024", "02/03/2024"}, got)
}

func TestPlanSingleDay(t *testing.T) {
	days, err := Plan("15/06/2023", "15/06/2023", nil)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "15/06/2023", Format(days[0]))
}

func TestPlanSwapsInvertedRange(t *testing.T) {
	var warnings []string
	forward, err := Plan("01/01/2024", "10/01/2024", nil)
	require.NoError(t, err)

	inverted, err := Plan("10/01/2024", "01/01/2024", func(msg string) {
		warnings = append(warnings, msg)
	})
	require.NoError(t, err)

	assert.Equal(t, forward, inverted)
	assert.Len(t, inverted, 10)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "[AVISO]")
	assert.Contains(t, warnings[0], "Invertendo")
}

func TestPlanLengthMatchesDayDifference(t *testing.T) {
	cases := [][2]string{
		{"01/01/2023", "31/12/2023"},
		{"31/12/2023", "01/01/2024"},
		{"15/03/2024", "15/04/2024"},
	}
	for _, c := range cases {
		days, err := Plan(c[0], c[1], nil)
		require.NoError(t, err)

		s, _ := Parse("start", c[0])
		e, _ := Parse("end", c[1])
		want := int(e.Sub(s).Hours()/24) + 1
		assert.Len(t, days, want, "%s..%s", c[0], c[1])
	}
}

func TestPlanRejectsBadFormat(t *testing.T) {
	_, err := Plan("2024-01-01", "05/01/2024", nil)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "start", fe.Field)
	assert.Equal(t, "2024-01-01", fe.Value)

	_, err = Plan("01/01/2024", "31/02/2024", nil)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "end", fe.Field)
}
