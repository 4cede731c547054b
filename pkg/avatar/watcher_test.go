package avatar

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/oscquery"
)

const sampleConfig = `{
  "id": "avtr_0001",
  "name": "Test Avatar",
  "parameters": [
    {
      "name": "Mood",
      "input": {"address": "/avatar/parameters/Mood", "type": "Float"},
      "output": {"address": "/avatar/parameters/Mood", "type": "Float"}
    },
    {
      "name": "Hat",
      "input": {"address": "/avatar/parameters/Hat", "type": "Bool"}
    },
    {
      "name": "VelocityY",
      "output": {"address": "/avatar/parameters/VelocityY", "type": "Float"}
    }
  ]
}`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "avatar.json", sampleConfig)

	cfg, err := ParseConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "avtr_0001", cfg.ID)
	assert.Equal(t, "Test Avatar", cfg.Name)
	require.Len(t, cfg.Parameters, 3)
	assert.Equal(t, "/avatar/parameters/Mood", cfg.Parameters[0].Input.Address)
	assert.Equal(t, "Float", cfg.Parameters[0].Input.Type)
	assert.Nil(t, cfg.Parameters[2].Input)
}

func TestParseConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseConfigFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrConfigParse)

	bad := writeConfig(t, dir, "bad.json", "{not json")
	_, err = ParseConfigFile(bad)
	assert.ErrorIs(t, err, ErrConfigParse)

	noID := writeConfig(t, dir, "noid.json", `{"name": "x", "parameters": []}`)
	_, err = ParseConfigFile(noID)
	assert.ErrorIs(t, err, ErrConfigParse)
}

func TestLoadConfigDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.json", sampleConfig)
	writeConfig(t, dir, "broken.json", "{")
	writeConfig(t, dir, "ignored.txt", "not a config")

	configs := LoadConfigDir(dir, testLogger())
	require.Len(t, configs, 1)
	assert.Equal(t, "avtr_0001", configs[0].ID)
}

type fakeRegistrar struct {
	added   []oscquery.Method
	removed []string
}

func (f *fakeRegistrar) AddMethod(m oscquery.Method) error { f.added = append(f.added, m); return nil }
func (f *fakeRegistrar) RemoveMethod(address string)       { f.removed = append(f.removed, address) }

func (f *fakeRegistrar) find(address string) (oscquery.Method, bool) {
	for _, m := range f.added {
		if m.Address == address {
			return m, true
		}
	}
	return oscquery.Method{}, false
}

func TestWatcherAvatarChange(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "avatar.json", sampleConfig)

	reg := &fakeRegistrar{}
	var changed *Config
	w := NewWatcher(WatcherConfig{
		Dir:       dir,
		Registrar: reg,
		OnChange:  func(c *Config) { changed = c },
		Logger:    testLogger(),
	})
	require.NoError(t, w.Start())
	defer w.Stop()
	assert.ErrorIs(t, w.Start(), ErrAlreadyRunning)

	require.Len(t, w.Known(), 1)
	assert.Nil(t, w.Current())

	assert.ErrorIs(t, w.HandleAvatarChange("avtr_none"), ErrUnknownAvatar)

	require.NoError(t, w.HandleAvatarChange("avtr_0001"))
	require.NotNil(t, w.Current())
	assert.Equal(t, "avtr_0001", w.Current().ID)
	require.NotNil(t, changed)
	assert.Equal(t, "Test Avatar", changed.Name)

	mood, ok := reg.find("/avatar/parameters/Mood")
	require.True(t, ok)
	assert.Equal(t, oscquery.AccessReadWrite, mood.Access)
	assert.Equal(t, oscquery.TypeFloat, mood.Type)

	hat, ok := reg.find("/avatar/parameters/Hat")
	require.True(t, ok)
	assert.Equal(t, oscquery.AccessWrite, hat.Access)
	assert.Equal(t, oscquery.TypeBool, hat.Type)

	velocity, ok := reg.find("/avatar/parameters/VelocityY")
	require.True(t, ok)
	assert.Equal(t, oscquery.AccessRead, velocity.Access)

	// Switching again unregisters the previous set first.
	require.NoError(t, w.HandleAvatarChange("avtr_0001"))
	assert.Contains(t, reg.removed, "/avatar/parameters/Mood")
	assert.Contains(t, reg.removed, "/avatar/parameters/Hat")
}

func TestWatcherRescan(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "avatar.json", sampleConfig)

	w := NewWatcher(WatcherConfig{Dir: dir, PollInterval: 10 * time.Millisecond, Logger: testLogger()})
	require.NoError(t, w.Start())
	defer w.Stop()
	require.Len(t, w.Known(), 1)

	writeConfig(t, dir, "second.json", `{"id": "avtr_0002", "name": "Second", "parameters": []}`)
	require.Eventually(t, func() bool { return len(w.Known()) == 2 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		for _, c := range w.Known() {
			if c.ID == "avtr_0001" {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond)
}
