package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

func newTestStore(t *testing.T, maxRuns, maxEvents int) *Store {
	t.Helper()
	s, err := NewStore(Config{DataDir: t.TempDir(), MaxRuns: maxRuns, MaxEvents: maxEvents}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_RingBufferRotation(t *testing.T) {
	s := newTestStore(t, 3, 2)

	for i := 0; i < 5; i++ {
		s.RecordRun(RunRecord{RequestID: fmt.Sprintf("r%d", i), Status: valueobject.RunCompleted})
	}
	runs := s.Runs()
	require.Len(t, runs, 3)
	assert.Equal(t, "r2", runs[0].RequestID)
	assert.Equal(t, "r4", runs[2].RequestID)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Write(context.Background(), valueobject.AuditEvent{
			RequestID: fmt.Sprintf("e%d", i),
			EventType: valueobject.EventRunProgress,
			Timestamp: time.Now(),
		}))
	}
	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].RequestID)
}

func TestStore_PersistsTruncatedArrays(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{DataDir: dir, MaxRuns: 2, MaxEvents: 2}, nil)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.RecordRun(RunRecord{RequestID: fmt.Sprintf("r%d", i), Status: valueobject.RunCompleted})
	}
	s.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "runs.json"))
	require.NoError(t, err)
	var persisted []RunRecord
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "r1", persisted[0].RequestID)

	_, err = os.Stat(filepath.Join(dir, "events.json"))
	require.NoError(t, err)
}

func TestStore_DebouncesFlushes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{DataDir: dir}, nil)
	require.NoError(t, err)
	defer s.Close()

	s.RecordRun(RunRecord{RequestID: "r0", Status: valueobject.RunCompleted})
	// Nothing on disk before the debounce interval elapses.
	_, statErr := os.Stat(filepath.Join(dir, "runs.json"))
	assert.True(t, os.IsNotExist(statErr))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "runs.json"))
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
}
