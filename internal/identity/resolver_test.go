package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionIDIsStableWithinTab(t *testing.T) {
	r := NewResolver(NewMemoryStorage(), NewMemoryStorage())
	first := r.SessionID()
	require.NotEmpty(t, first)
	require.Equal(t, first, r.SessionID())

	other := NewResolver(NewMemoryStorage(), NewMemoryStorage())
	require.NotEqual(t, first, other.SessionID())
}

func TestReturningVisitorAcrossSessions(t *testing.T) {
	durable := NewMemoryStorage()

	firstSession := NewResolver(NewMemoryStorage(), durable)
	require.False(t, firstSession.IsReturningVisitor())

	secondSession := NewResolver(NewMemoryStorage(), durable)
	require.True(t, secondSession.IsReturningVisitor())
}

func TestPageCountStartsAtOne(t *testing.T) {
	tab := NewMemoryStorage()
	r := NewResolver(tab, NewMemoryStorage())

	require.Equal(t, 0, r.PageCount())
	require.Equal(t, 1, r.NextPageCount())
	require.Equal(t, 1, r.PageCount())
	require.Equal(t, 2, r.NextPageCount())
	require.Equal(t, 2, r.PageCount())

	tab.Set(PageCountKey, "garbage")
	require.Equal(t, 0, r.PageCount())
	require.Equal(t, 1, r.NextPageCount())
}
