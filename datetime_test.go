package tablekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate_RoundTrip(t *testing.T) {
	s, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", s.String())
}

func TestParseDate_RejectsMalformed(t *testing.T) {
	_, err := ParseDate("not-a-date")
	require.Error(t, err)
	var ke *KernelError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrorTypeParseError, ke.Type)
}

func TestParseTimestamp_AcceptsZuluOffset(t *testing.T) {
	s, err := ParseTimestamp("2024-03-15T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, KindTimestamp, s.Type.Primitive)
}

func TestParseTimestamp_AcceptsBareSpaceLiteral(t *testing.T) {
	_, err := ParseTimestamp("2024-03-15 12:00:00")
	require.NoError(t, err)
}

func TestParseTimestampNtz_RejectsZuluSuffix(t *testing.T) {
	_, err := ParseTimestampNtz("2024-03-15T12:00:00Z")
	require.Error(t, err)
}

func TestParseTimestampNtz_RejectsExplicitOffset(t *testing.T) {
	_, err := ParseTimestampNtz("2024-03-15T12:00:00+05:00")
	require.Error(t, err)
}

func TestParseTimestampNtz_AcceptsZonelessLiteral(t *testing.T) {
	s, err := ParseTimestampNtz("2024-03-15 12:00:00.5")
	require.NoError(t, err)
	assert.Equal(t, KindTimestampNtz, s.Type.Primitive)
}

func TestEpochDayRoundTrip(t *testing.T) {
	d := epochDayToDate(19431)
	assert.Equal(t, int32(19431), dateToEpochDay(d))
}

func TestEpochMicrosRoundTrip(t *testing.T) {
	tm := epochMicrosToTime(1_700_000_000_000_000)
	assert.Equal(t, int64(1_700_000_000_000_000), timeToEpochMicros(tm))
}
