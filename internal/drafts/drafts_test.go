package drafts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsched/internal/flow"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndLoadDraft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fee := 300.0
	snap := flow.Snapshot{
		ID:         "sess-1",
		DoctorID:   "doc-7",
		Step:       flow.StepRange,
		RangeStart: "2025-03-01",
		RangeEnd:   "2025-03-10",
		Excluded:   []string{"2025-03-04"},
		StartTime:  "09:00",
		EndTime:    "17:00",
		DurationID: 2,
		Fee:        &fee,
		UpdatedAt:  time.Now(),
	}

	require.NoError(t, db.SaveDraft(ctx, snap))

	loaded, err := db.LoadDraft(ctx, "doc-7")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, loaded.ID)
	assert.Equal(t, snap.RangeStart, loaded.RangeStart)
	assert.Equal(t, snap.Excluded, loaded.Excluded)
	require.NotNil(t, loaded.Fee)
	assert.Equal(t, 300.0, *loaded.Fee)

	// The snapshot must restore into a usable session.
	restored, ok := flow.RestoreSession(loaded)
	require.True(t, ok)
	assert.Equal(t, 9, restored.Selector.ActiveCount())
}

func TestSaveDraftUpserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDraft(ctx, flow.Snapshot{ID: "sess-1", DoctorID: "doc-7", Step: flow.StepRange}))
	require.NoError(t, db.SaveDraft(ctx, flow.Snapshot{ID: "sess-2", DoctorID: "doc-7", Step: flow.StepPreview}))

	loaded, err := db.LoadDraft(ctx, "doc-7")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", loaded.ID)
	assert.Equal(t, flow.StepPreview, loaded.Step)
}

func TestLoadDraftMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := db.LoadDraft(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestDeleteDraft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDraft(ctx, flow.Snapshot{ID: "sess-1", DoctorID: "doc-7"}))
	require.NoError(t, db.DeleteDraft(ctx, "doc-7"))

	_, err := db.LoadDraft(ctx, "doc-7")
	assert.ErrorIs(t, err, ErrNoDraft)

	// Deleting a missing draft is not an error.
	assert.NoError(t, db.DeleteDraft(ctx, "doc-7"))
}

func TestCleanupStale(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDraft(ctx, flow.Snapshot{ID: "sess-1", DoctorID: "doc-old"}))

	// Backdate the row past the retention window.
	_, err := db.ExecContext(ctx,
		"UPDATE schedule_drafts SET updated_at = ? WHERE doctor_id = ?",
		time.Now().Add(-48*time.Hour), "doc-old")
	require.NoError(t, err)

	require.NoError(t, db.SaveDraft(ctx, flow.Snapshot{ID: "sess-2", DoctorID: "doc-new"}))

	removed, err := db.CleanupStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = db.LoadDraft(ctx, "doc-old")
	assert.ErrorIs(t, err, ErrNoDraft)
	_, err = db.LoadDraft(ctx, "doc-new")
	assert.NoError(t, err)
}
