package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/planner"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

type fakeSource struct {
	mu      sync.Mutex
	version string
	loadErr error
	loads   int
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Version(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *fakeSource) Load(context.Context) (*models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return &models.Timetable{}, nil
}

func (s *fakeSource) set(version string, loadErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	s.loadErr = loadErr
}

type fakeReloader struct {
	mu       sync.Mutex
	versions []string
	err      error
}

func (r *fakeReloader) Reload(_ context.Context, version string, _ *models.Timetable) (*planner.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.versions = append(r.versions, version)
	return &planner.Snapshot{BuildID: "b-" + version, Version: version}, nil
}

func (r *fakeReloader) reloaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.versions...)
}

func TestCheckNowReloadsOnlyOnChange(t *testing.T) {
	src := &fakeSource{version: "v1"}
	rl := &fakeReloader{}
	w := New(Config{}, src, rl, logger.Nop())
	ctx := context.Background()

	changed, err := w.CheckNow(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = w.CheckNow(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, src.loads)

	src.set("v2", nil)
	changed, err = w.CheckNow(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"v1", "v2"}, rl.reloaded())
	assert.Equal(t, "v2", w.LastVersion())
}

func TestFailedLoadIsRetried(t *testing.T) {
	src := &fakeSource{version: "v1", loadErr: errors.New("truncated archive")}
	rl := &fakeReloader{}
	w := New(Config{}, src, rl, logger.Nop())
	ctx := context.Background()

	_, err := w.CheckNow(ctx)
	require.Error(t, err)
	assert.Empty(t, w.LastVersion())

	src.set("v1", nil)
	changed, err := w.CheckNow(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"v1"}, rl.reloaded())
}

func TestRejectedReloadKeepsLastVersion(t *testing.T) {
	src := &fakeSource{version: "v1"}
	rl := &fakeReloader{}
	w := New(Config{}, src, rl, logger.Nop())
	ctx := context.Background()

	_, err := w.CheckNow(ctx)
	require.NoError(t, err)

	rl.err = errors.New("schema error")
	src.set("v2", nil)
	_, err = w.CheckNow(ctx)
	require.Error(t, err)
	assert.Equal(t, "v1", w.LastVersion())
}

func TestStartPollsUntilStopped(t *testing.T) {
	src := &fakeSource{version: "v1"}
	rl := &fakeReloader{}
	w := New(Config{CheckInterval: 5 * time.Millisecond}, src, rl, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(rl.reloaded()) == 1 }, time.Second, time.Millisecond)
	src.set("v2", nil)
	require.Eventually(t, func() bool { return len(rl.reloaded()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, w.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Error(t, w.Stop())
}

func TestStartWithoutIntervalChecksOnce(t *testing.T) {
	src := &fakeSource{version: "v1"}
	rl := &fakeReloader{}
	w := New(Config{}, src, rl, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(rl.reloaded()) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
