package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	chunks   chan []byte
	stopOnce sync.Once
	stops    atomic.Int32
	raw      []byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{chunks: make(chan []byte, 8)}
}

func (f *fakeSource) Chunks() <-chan []byte { return f.chunks }
func (f *fakeSource) RawPCM() []byte        { return f.raw }
func (f *fakeSource) Device() Device        { return Device{ID: "mic", Description: "Test Mic"} }
func (f *fakeSource) BytesCaptured() int64  { return int64(len(f.raw)) }

func (f *fakeSource) Stop() error {
	f.stops.Add(1)
	f.stopOnce.Do(func() { close(f.chunks) })
	return nil
}

func newTestRecorder(src *fakeSource, openErr error, opts ...RecorderOption) *Recorder {
	r := NewRecorder("default", "", nil, opts...)
	r.open = func(context.Context, string, string) (source, Selection, error) {
		if openErr != nil {
			return nil, Selection{}, openErr
		}
		return src, Selection{Device: src.Device()}, nil
	}
	return r
}

func TestRecorderForwardsChunksUntilStop(t *testing.T) {
	src := newFakeSource()
	rec := newTestRecorder(src, nil)

	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, rec.Start(context.Background(), func(chunk []byte) {
		mu.Lock()
		got = append(got, chunk)
		mu.Unlock()
	}, func(error) { t.Error("unexpected capture error") }))
	require.True(t, rec.IsRecording())

	src.chunks <- []byte{1, 2}
	src.chunks <- nil
	src.chunks <- []byte{3, 4}

	require.NoError(t, rec.Stop(context.Background()))
	require.False(t, rec.IsRecording())
	require.Equal(t, int32(1), src.stops.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, [][]byte{{1, 2}, {3, 4}}, got)
}

func TestRecorderRejectsSecondStart(t *testing.T) {
	rec := newTestRecorder(newFakeSource(), nil)
	require.NoError(t, rec.Start(context.Background(), func([]byte) {}, nil))
	require.Error(t, rec.Start(context.Background(), func([]byte) {}, nil))
	require.NoError(t, rec.Stop(context.Background()))
}

func TestRecorderStartPropagatesOpenError(t *testing.T) {
	rec := newTestRecorder(nil, errors.New("no pulse"))
	err := rec.Start(context.Background(), func([]byte) {}, nil)
	require.ErrorContains(t, err, "no pulse")
	require.False(t, rec.IsRecording())
}

func TestRecorderStopWithoutStartIsNoop(t *testing.T) {
	rec := newTestRecorder(newFakeSource(), nil)
	require.NoError(t, rec.Stop(context.Background()))
}

func TestRecorderReportsUnexpectedStreamEnd(t *testing.T) {
	src := newFakeSource()
	rec := newTestRecorder(src, nil)

	errs := make(chan error, 1)
	require.NoError(t, rec.Start(context.Background(), func([]byte) {}, func(err error) { errs <- err }))

	close(src.chunks)
	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrCaptureEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("expected capture error")
	}
}

func TestRecorderDumpsDebugWAV(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)

	src := newFakeSource()
	src.raw = []byte{1, 0, 2, 0}
	rec := newTestRecorder(src, nil, WithAudioDump(true))

	require.NoError(t, rec.Start(context.Background(), func([]byte) {}, nil))
	require.NoError(t, rec.Stop(context.Background()))

	matches, err := filepath.Glob(filepath.Join(stateDir, "parley", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Len(t, data, 44+len(src.raw))
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "Mic (id)", describeDevice(Device{ID: "id", Description: "Mic"}))
	require.Equal(t, "id", describeDevice(Device{ID: "id"}))
	require.Equal(t, "Mic", describeDevice(Device{Description: "Mic"}))
}
