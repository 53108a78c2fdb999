package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkdb/flux/core"
)

// runPipeline opens a log, runs emit on the network goroutine, then flushes,
// closes and returns the concatenated contents of the written files.
func runPipeline(t *testing.T, opts Options, emit func(tl *Log)) string {
	t.Helper()
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)
	require.NoError(t, tl.Open(opts))

	emit(tl)

	core.Spawn(rt, "driver", func(a *core.Actor) (core.Void, *core.Error) {
		if _, err := core.Wait(a, tl.Flush()); err != nil {
			return core.Void{}, err
		}
		if _, err := core.Wait(a, tl.Close()); err != nil {
			return core.Void{}, err
		}
		rt.Stop()
		return core.Void{}, nil
	})
	rt.Run()

	entries, err := os.ReadDir(opts.Directory)
	require.NoError(t, err)
	var sb strings.Builder
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(opts.Directory, e.Name()))
		require.NoError(t, err)
		sb.Write(data)
	}
	return sb.String()
}

func TestLog_WritesJSONEvents(t *testing.T) {
	dir := t.TempDir()
	content := runPipeline(t, Options{Directory: dir, Format: "json"}, func(tl *Log) {
		ok := New("HelloEvent").Detail("Answer", 42).Log(tl)
		assert.True(t, ok)
	})

	assert.Contains(t, content, `"Type": "HelloEvent"`)
	assert.Contains(t, content, `"Answer": "42"`)
	assert.Contains(t, content, `"Type": "TraceOpened"`)
}

func TestLog_FileNamesCarryIndex(t *testing.T) {
	dir := t.TempDir()
	runPipeline(t, Options{Directory: dir, Format: "json"}, func(tl *Log) {
		New("One").Log(tl)
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Regexp(t, `^trace\.[0-9a-z]+\.\d+\.json$`, e.Name())
	}
}

func TestLog_ErrorFieldsAndCancelledSuppression(t *testing.T) {
	dir := t.TempDir()
	content := runPipeline(t, Options{Directory: dir, Format: "json"}, func(tl *Log) {
		assert.True(t, New("Failed").Severity(SevError).Err(core.ErrIOError()).Log(tl))

		// actor_cancelled is a benign end-of-life signal: dropped by default,
		// logged with explicit opt-in.
		assert.False(t, New("Quiet").Err(core.ErrActorCancelled()).Log(tl))
		assert.True(t, New("Loud").Err(core.ErrActorCancelled()).AllowCancelled().Log(tl))
	})

	assert.Contains(t, content, `"Error": "io_error"`)
	assert.NotContains(t, content, `"Type": "Quiet"`)
	assert.Contains(t, content, `"Type": "Loud"`)
}

func TestLog_InjectedFaultDowngradesSeverity(t *testing.T) {
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)

	New("InjectedFailure").
		Severity(SevError).
		Err(core.ErrIOError().WithFaultInjection()).
		TrackLatest().
		Log(tl)

	fields, ok := tl.Latest("InjectedFailure")
	require.True(t, ok)
	sev, _ := fields.Get("Severity")
	assert.Equal(t, SevWarnAlways.String(), sev, "injected faults must not report SevError")
}

func TestLog_SuppressionWindow(t *testing.T) {
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)

	assert.True(t, New("Chatty").SuppressFor(10).Log(tl))
	for i := 0; i < 5; i++ {
		assert.False(t, New("Chatty").SuppressFor(10).Log(tl), "duplicate %d inside the window", i)
	}
	// A different type is unaffected.
	assert.True(t, New("Other").SuppressFor(10).Log(tl))
}

func TestLog_LatestEventCache(t *testing.T) {
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)

	New("Health").Detail("Round", 1).TrackLatest().Log(tl)
	New("Health").Detail("Round", 2).TrackLatest().Log(tl)

	fields, ok := tl.Latest("Health")
	require.True(t, ok)
	round, _ := fields.Get("Round")
	assert.Equal(t, "2", round, "cache should keep the most recent event")
	assert.Len(t, tl.LatestAll(), 1)
}

func TestLog_RollOnSize(t *testing.T) {
	dir := t.TempDir()
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)
	require.NoError(t, tl.Open(Options{Directory: dir, Format: "json", RollSize: 256}))

	core.Spawn(rt, "driver", func(a *core.Actor) (core.Void, *core.Error) {
		for i := 0; i < 8; i++ {
			New("Filler").Detail("Padding", strings.Repeat("x", 64)).Log(tl)
			if _, err := core.Wait(a, tl.Flush()); err != nil {
				return core.Void{}, err
			}
		}
		if _, err := core.Wait(a, tl.Close()); err != nil {
			return core.Void{}, err
		}
		rt.Stop()
		return core.Void{}, nil
	})
	rt.Run()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1, "output should have rolled to more than one file")
}

func TestLog_PreopenBufferAndDropCounter(t *testing.T) {
	dir := t.TempDir()
	rt := core.NewRuntime(core.RuntimeOptions{Seed: 1})
	tl := NewLog(rt)

	// Tiny budget: the first event fits, the flood overflows.
	tl.preopenBudget = 256
	New("BeforeOpen").Detail("Kept", "yes").Log(tl)
	for i := 0; i < 50; i++ {
		New("Flood").Detail("Padding", strings.Repeat("y", 32)).Log(tl)
	}

	require.NoError(t, tl.Open(Options{Directory: dir, Format: "json"}))
	core.Spawn(rt, "driver", func(a *core.Actor) (core.Void, *core.Error) {
		if _, err := core.Wait(a, tl.Close()); err != nil {
			return core.Void{}, err
		}
		rt.Stop()
		return core.Void{}, nil
	})
	rt.Run()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var content strings.Builder
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		content.Write(data)
	}
	assert.Contains(t, content.String(), `"Type": "BeforeOpen"`)
	assert.Contains(t, content.String(), `"PreopenDroppedEvents"`)
}
