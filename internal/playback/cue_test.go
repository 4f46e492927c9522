package playback

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/config"
)

func TestCueSamplesPresent(t *testing.T) {
	require.NotEmpty(t, cueSamples(cueStart))
	require.NotEmpty(t, cueSamples(cueConfirm))
	require.NotEmpty(t, cueSamples(cueCancel))
	require.Empty(t, cueSamples(cueKind(99)))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
	require.Zero(t, got[0])
	require.Zero(t, got[len(got)-1])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestCuePathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := config.PlaybackConfig{CueConfirmFile: "~/cues/ok.wav", CueCancelFile: "/abs/cancel.wav"}
	require.Equal(t, filepath.Join(home, "cues", "ok.wav"), cuePath(cueConfirm, cfg))
	require.Equal(t, "/abs/cancel.wav", cuePath(cueCancel, cfg))
	require.Equal(t, "", cuePath(cueStart, cfg))
}
