package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"medsched/internal/dates"
	"medsched/internal/slots"
)

func TestWriteRoster(t *testing.T) {
	active := []dates.Date{dates.New(2025, 1, 30), dates.New(2025, 1, 31), dates.New(2025, 2, 1)}
	groups := slots.Generate(active,
		slots.TimeOfDay{Hour: 9}, slots.TimeOfDay{Hour: 10}, 30)
	require.Len(t, groups, 3)

	w := NewRosterWriter()
	defer w.Close()
	require.NoError(t, w.WriteRoster(groups, 30))

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	// One sheet per month, in order of appearance.
	assert.Equal(t, []string{"January 2025", "February 2025"}, f.GetSheetList())

	jan, err := f.GetRows("January 2025")
	require.NoError(t, err)
	// Header + 2 days x 2 slots.
	require.Len(t, jan, 5)
	assert.Equal(t, []string{"Date", "Weekday", "Slot Start", "Slot End"}, jan[0])
	assert.Equal(t, []string{"2025-01-30", "Thursday", "09:00", "09:30"}, jan[1])
	assert.Equal(t, []string{"2025-01-31", "Friday", "09:30", "10:00"}, jan[4])

	feb, err := f.GetRows("February 2025")
	require.NoError(t, err)
	require.Len(t, feb, 3)
	assert.Equal(t, "2025-02-01", feb[1][0])
}

func TestWriteRosterEmpty(t *testing.T) {
	w := NewRosterWriter()
	defer w.Close()
	require.NoError(t, w.WriteRoster(nil, 30))

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Sheet1"}, f.GetSheetList())
}
