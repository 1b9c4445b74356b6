package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/logger"
)

func openSettings(t *testing.T) *SettingsRepository {
	t.Helper()
	db, err := Open(":memory:", logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, Close(db))
	})
	return NewSettingsRepository(db)
}

func TestSettingsRepository_UpsertOverwrites(t *testing.T) {
	repo := openSettings(t)

	require.NoError(t, repo.SetString("play_mode", "list"))
	require.NoError(t, repo.SetString("play_mode", "shuffle"))

	v, err := repo.GetString("play_mode", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "shuffle", v)
}

func TestSettingsRepository_MissingKeysReturnFallback(t *testing.T) {
	repo := openSettings(t)

	s, err := repo.GetString("absent", "dft")
	require.NoError(t, err)
	assert.Equal(t, "dft", s)

	b, err := repo.GetBool("absent", true)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := repo.GetInt64("absent", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	f, err := repo.GetFloat64("absent", 0.75)
	require.NoError(t, err)
	assert.Equal(t, 0.75, f)
}

func TestSettingsRepository_TypedRoundTrip(t *testing.T) {
	repo := openSettings(t)

	require.NoError(t, repo.SetBool("cache_enabled", true))
	require.NoError(t, repo.SetInt64("audio_9_size", 123456))
	require.NoError(t, repo.SetFloat64("playback_speed", 1.25))

	b, err := repo.GetBool("cache_enabled", false)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := repo.GetInt64("audio_9_size", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), i)

	f, err := repo.GetFloat64("playback_speed", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)
}

func TestSettingsRepository_PrefixOperations(t *testing.T) {
	repo := openSettings(t)

	require.NoError(t, repo.SetString("audio_1_ext", "mp3"))
	require.NoError(t, repo.SetInt64("audio_1_size", 100))
	require.NoError(t, repo.SetInt64("audio_2_size", 200))
	require.NoError(t, repo.SetString("cover_1_size", "50"))

	keys, err := repo.KeysWithPrefix("audio_")
	require.NoError(t, err)
	assert.Equal(t, []string{"audio_1_ext", "audio_1_size", "audio_2_size"}, keys)

	require.NoError(t, repo.DeletePrefix("audio_1_"))

	keys, err = repo.KeysWithPrefix("audio_")
	require.NoError(t, err)
	assert.Equal(t, []string{"audio_2_size"}, keys)

	require.NoError(t, repo.Delete("cover_1_size"))
	v, err := repo.GetString("cover_1_size", "")
	require.NoError(t, err)
	assert.Empty(t, v)
}
