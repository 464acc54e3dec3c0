package pg

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullTimeRoundTrip(t *testing.T) {
	require.Nil(t, nullTime(sql.NullTime{}))
	require.False(t, timeArg(nil).Valid)

	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	arg := timeArg(&at)
	require.True(t, arg.Valid)
	got := nullTime(arg)
	require.NotNil(t, got)
	require.True(t, got.Equal(at))
	require.Equal(t, time.UTC, got.Location())
}
