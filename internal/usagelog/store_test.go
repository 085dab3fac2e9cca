package usagelog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelmgrd/internal/manager"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "usage.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", zerolog.Nop())
	assert.Error(t, err)
}

func TestPublishAndUsageCounts(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		s.Publish(manager.Event{Name: manager.EventUsage, ModelID: "m1", At: base.Add(time.Duration(i) * time.Second)})
	}
	s.Publish(manager.Event{Name: manager.EventUsage, ModelID: "m2", At: base})
	// Old event outside the queried window.
	s.Publish(manager.Event{Name: manager.EventUsage, ModelID: "m1", At: base.Add(-time.Hour)})
	// Different event name must not count as usage.
	s.Publish(manager.Event{Name: manager.EventLoadOK, ModelID: "m1", At: base})

	counts, err := s.UsageCounts(base)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"m1": 3, "m2": 1}, counts)
}

func TestErrorCounts(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)

	s.Publish(manager.Event{
		Name: manager.EventError, ModelID: "m1", At: base,
		Fields: map[string]any{"kind": "budget_exceeded", "message": "no headroom"},
	})
	s.Publish(manager.Event{
		Name: manager.EventError, ModelID: "m1", At: base.Add(time.Second),
		Fields: map[string]any{"kind": "budget_exceeded", "message": "still none"},
	})
	s.Publish(manager.Event{
		Name: manager.EventError, ModelID: "m2", At: base,
		Fields: map[string]any{"kind": "runtime_load_error", "message": "boom"},
	})

	counts, err := s.ErrorCounts(base)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["budget_exceeded"])
	assert.Equal(t, 1, counts["runtime_load_error"])
}
