package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePlanDirCreatesHistoryFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.EnsurePlanDir())
	assert.True(t, s.Exists(HistoryFile))
}

func TestDetectCycleStateFresh(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.EnsurePlanDir())

	state, err := s.DetectCycleState()
	require.NoError(t, err)
	assert.True(t, state.Fresh)
}

func TestDetectCycleStateInProgress(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.EnsurePlanDir())
	require.NoError(t, s.Write(CurrentRequirementsFile, "stuff"))

	state, err := s.DetectCycleState()
	require.NoError(t, err)
	assert.False(t, state.Fresh)
	assert.WithinDuration(t, time.Now(), state.NewestMod, 5*time.Second)
}

func TestRenameIsIdempotentOnRecoveryPath(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.EnsurePlanDir())
	require.NoError(t, s.Write(CurrentRequirementsFile, "already renamed"))

	// Source (new_requirements.md) is already gone; destination already exists.
	err := s.Rename(NewRequirementsFile, CurrentRequirementsFile)
	require.NoError(t, err)

	content, err := s.Read(CurrentRequirementsFile)
	require.NoError(t, err)
	assert.Equal(t, "already renamed", content)
}

func TestEnsureMarkersPrependsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.EnsurePlanDir())
	require.NoError(t, s.Write(NewRequirementsFile, "Add function foo()."))

	require.NoError(t, s.EnsureMarkers())

	content, err := s.Read(NewRequirementsFile)
	require.NoError(t, err)
	assert.True(t, HasBothMarkers(content+MarkerCurrentRequirements))
	assert.Contains(t, content, MarkerOriginalUserReqs)
}

func TestReadMissingArtifactReturnsArtifactIoError(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Read(CurrentRequirementsFile)
	require.Error(t, err)

	var ioErr *ArtifactIoError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, CurrentRequirementsFile, ioErr.Name)
}

func TestPathRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	assert.Panics(t, func() {
		s.Exists("../../etc/passwd")
	})
}

func TestStampFormatsDifferFromHistoryTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-05_14-30-00", Stamp(now))
	assert.Equal(t, "2026-03-05 14:30:00", HistoryTimestamp(now))
	assert.NotEqual(t, Stamp(now), HistoryTimestamp(now))
}
