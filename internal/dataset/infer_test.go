package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromRows_InfersKinds(t *testing.T) {
	when := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	rows := []map[string]interface{}{
		{"ID": "01-001", "AGE": int64(34), "BMI": 22.5, "SAFFL": true, "RFSTDTC": when},
		{"ID": "01-002", "AGE": int64(71), "BMI": 27.1, "SAFFL": false, "RFSTDTC": when},
	}

	tbl, err := FromRows(rows)
	require.NoError(t, err)

	require.Equal(t, Schema{
		"ID":      KindString,
		"AGE":     KindInt,
		"BMI":     KindFloat,
		"SAFFL":   KindBool,
		"RFSTDTC": KindTime,
	}, tbl.Schema())

	// Columns come out sorted by name.
	require.Equal(t, []string{"AGE", "BMI", "ID", "RFSTDTC", "SAFFL"}, tbl.Columns())

	age, _ := tbl.Column("AGE")
	require.Equal(t, int64(71), age.Int(1))
}

func TestFromRows_IntAndFloatWidenToFloat(t *testing.T) {
	rows := []map[string]interface{}{
		{"DOSE": int64(10)},
		{"DOSE": 12.5},
	}

	tbl, err := FromRows(rows)
	require.NoError(t, err)

	dose, _ := tbl.Column("DOSE")
	require.Equal(t, KindFloat, dose.Kind())
	require.Equal(t, 10.0, dose.Float(0))
	require.Equal(t, 12.5, dose.Float(1))
}

func TestFromRows_MixedKindsDegradeToString(t *testing.T) {
	rows := []map[string]interface{}{
		{"V": int64(42)},
		{"V": "n/a"},
	}

	tbl, err := FromRows(rows)
	require.NoError(t, err)

	v, _ := tbl.Column("V")
	require.Equal(t, KindString, v.Kind())
	require.Equal(t, "42", v.Str(0))
	require.Equal(t, "n/a", v.Str(1))
}

func TestFromRows_MissingKeysBecomeNulls(t *testing.T) {
	rows := []map[string]interface{}{
		{"A": int64(1), "B": "x"},
		{"A": int64(2)},
		{"B": "z"},
	}

	tbl, err := FromRows(rows)
	require.NoError(t, err)

	a, _ := tbl.Column("A")
	require.False(t, a.IsNull(0))
	require.False(t, a.IsNull(1))
	require.True(t, a.IsNull(2))

	b, _ := tbl.Column("B")
	require.True(t, b.IsNull(1))
	require.Equal(t, "z", b.Str(2))
}

func TestFromRows_AllNullColumnDefaultsToString(t *testing.T) {
	rows := []map[string]interface{}{
		{"EMPTY": nil},
		{"EMPTY": nil},
	}

	tbl, err := FromRows(rows)
	require.NoError(t, err)

	col, _ := tbl.Column("EMPTY")
	require.Equal(t, KindString, col.Kind())
	require.True(t, col.IsNull(0))
	require.True(t, col.IsNull(1))
}

func TestBuilder_Coercion(t *testing.T) {
	b := NewBuilder("N", KindInt)
	require.NoError(t, b.Append(int32(7)))
	require.NoError(t, b.Append(uint8(8)))
	require.Error(t, b.Append("seven"))

	tb := NewBuilder("D", KindTime)
	require.NoError(t, tb.Append("2024-01-02"))
	require.NoError(t, tb.Append(time.Now()))
	require.Error(t, tb.Append("yesterday-ish"))

	bb := NewBuilder("F", KindBool)
	require.Error(t, bb.Append(1))
	require.NoError(t, bb.Append(true))
}

func TestParseTime_Layouts(t *testing.T) {
	for _, input := range []string{
		"2024-01-02",
		"2024-01-02T15:04:05Z",
		"2024-01-02T15:04:05",
		"2024-01-02 15:04:05",
	} {
		_, ok := ParseTime(input)
		require.True(t, ok, "expected %q to parse", input)
	}

	_, ok := ParseTime("02/01/2024")
	require.False(t, ok)
}
