package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func reset(t *testing.T, o Options) {
	t.Helper()
	require.NoError(t, Initialize(o))
	t.Cleanup(func() {
		_ = Initialize(Options{})
	})
}

func TestCategoryFilesWritten(t *testing.T) {
	dir := t.TempDir()
	reset(t, Options{Dir: dir, Level: "debug"})

	Pipeline("stage %s started", "task_analyzer")
	API("groq call")
	StoreDebug("artifact saved")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range []Category{CategoryPipeline, CategoryAPI, CategoryStore, CategoryBoot} {
		data, err := os.ReadFile(filepath.Join(dir, date+"_"+string(cat)+".log"))
		require.NoError(t, err, "category %s", cat)
		assert.NotEmpty(t, data)
	}

	data, err := os.ReadFile(filepath.Join(dir, date+"_pipeline.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] stage task_analyzer started")
}

func TestJSONFormat(t *testing.T) {
	dir := t.TempDir()
	reset(t, Options{Dir: dir, Level: "info", JSONFormat: true})

	Optimize("critique received")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_optimize.log"))
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	// Strip the log.Logger timestamp prefix.
	line = line[strings.IndexByte(line, '{'):]

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "optimize", entry.Category)
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "critique received", entry.Message)
}

func TestLevelFiltering(t *testing.T) {
	reset(t, Options{Level: "warn"})

	ch, cancel := Subscribe(8)
	defer cancel()

	PipelineDebug("hidden")
	Pipeline("hidden too")
	PipelineWarn("shown")

	select {
	case e := <-ch:
		assert.Equal(t, "shown", e.Message)
		assert.Equal(t, "warn", e.Level)
	case <-time.After(time.Second):
		t.Fatal("expected a warn entry")
	}
	assert.Len(t, ch, 0)
}

func TestDisabledCategory(t *testing.T) {
	reset(t, Options{Level: "debug", Categories: map[string]bool{"store": false}})

	assert.False(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryPipeline))

	ch, cancel := Subscribe(8)
	defer cancel()

	Store("ignored")
	Server("listening")

	e := <-ch
	assert.Equal(t, "server", e.Category)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestRunLogger(t *testing.T) {
	reset(t, Options{Level: "debug"})

	ch, cancel := Subscribe(8)
	defer cancel()

	WithRunID(CategoryPipeline, "abc123").Info("stage %d of %d", 1, 3)

	e := <-ch
	assert.Equal(t, "[run:abc123] stage 1 of 3", e.Message)
	assert.Equal(t, "[INFO] [pipeline] [run:abc123] stage 1 of 3", e.String())
}

func TestTimer(t *testing.T) {
	reset(t, Options{Level: "debug"})

	timer := StartTimer(CategoryAPI, "completion")
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), 5*time.Millisecond)
}

func TestHub_NonBlockingPublish(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(Entry{Message: "one"})
	h.Publish(Entry{Message: "two"})

	assert.Equal(t, "one", (<-ch).Message)
	assert.Equal(t, uint64(1), h.Dropped())
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(0)
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())

	_, open := <-ch
	assert.False(t, open)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1000)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(Entry{Message: "x"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, len(ch))
}
