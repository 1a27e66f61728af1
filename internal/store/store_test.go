package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	t.Cleanup(func() { _ = logger.Sync() })

	s, err := Open(t.TempDir(), logger.Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSessionIDIsSortable(t *testing.T) {
	first := NewSessionID()
	time.Sleep(2 * time.Millisecond)
	second := NewSessionID()

	assert.Len(t, first, 26)
	assert.Less(t, first, second, "later session IDs must sort after earlier ones")
}

func TestRecordStartAndEnd(t *testing.T) {
	s := openTestStore(t)

	id := NewSessionID()
	require.NoError(t, s.RecordStart(id))
	require.NoError(t, s.RecordEnd(id, OutcomeFailed, errors.New("readiness timeout")))

	sessions, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, OutcomeFailed, got.Outcome)
	assert.Contains(t, got.Error, "readiness timeout")
	assert.False(t, got.StartedAt.IsZero())
	assert.False(t, got.EndedAt.IsZero())
}

func TestRecordEndUnknownSession(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordEnd("01AN4Z07BY79KA1307SR9X4MV3", OutcomeReady, nil)
	assert.Error(t, err)
}

func TestListMostRecentFirst(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id := NewSessionID()
		ids = append(ids, id)
		require.NoError(t, s.RecordStart(id))
		require.NoError(t, s.RecordEnd(id, OutcomeReady, nil))
		time.Sleep(2 * time.Millisecond)
	}

	sessions, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, ids[2], sessions[0].ID)
	assert.Equal(t, ids[1], sessions[1].ID)
}
