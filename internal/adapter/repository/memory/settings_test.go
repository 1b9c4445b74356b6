package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_StringRoundTrip(t *testing.T) {
	repo := NewSettingsRepository()

	v, err := repo.GetString("play_mode", "list")
	require.NoError(t, err)
	assert.Equal(t, "list", v)

	require.NoError(t, repo.SetString("play_mode", "shuffle"))

	v, err = repo.GetString("play_mode", "list")
	require.NoError(t, err)
	assert.Equal(t, "shuffle", v)
}

func TestSettingsRepository_TypedFallbacks(t *testing.T) {
	repo := NewSettingsRepository()

	b, err := repo.GetBool("cache_enabled", true)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := repo.GetInt64("audio_1_size", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i)

	f, err := repo.GetFloat64("playback_speed", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestSettingsRepository_TypedRoundTrip(t *testing.T) {
	repo := NewSettingsRepository()

	require.NoError(t, repo.SetBool("cache_enabled", false))
	b, err := repo.GetBool("cache_enabled", true)
	require.NoError(t, err)
	assert.False(t, b)

	require.NoError(t, repo.SetInt64("audio_1_size", 4096))
	i, err := repo.GetInt64("audio_1_size", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), i)

	require.NoError(t, repo.SetFloat64("playback_speed", 1.5))
	f, err := repo.GetFloat64("playback_speed", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}

func TestSettingsRepository_DeleteAndPrefix(t *testing.T) {
	repo := NewSettingsRepository()

	require.NoError(t, repo.SetString("audio_1_ext", "mp3"))
	require.NoError(t, repo.SetInt64("audio_1_size", 100))
	require.NoError(t, repo.SetInt64("audio_2_size", 200))
	require.NoError(t, repo.SetString("play_mode", "list"))

	keys, err := repo.KeysWithPrefix("audio_")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	require.NoError(t, repo.DeletePrefix("audio_1_"))
	keys, err = repo.KeysWithPrefix("audio_")
	require.NoError(t, err)
	assert.Equal(t, []string{"audio_2_size"}, keys)

	require.NoError(t, repo.Delete("play_mode"))
	v, err := repo.GetString("play_mode", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}
