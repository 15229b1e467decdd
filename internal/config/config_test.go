package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Channels.Write.Capacity)
	require.Equal(t, "oldest", cfg.Channels.Write.DropPolicy)
	require.Equal(t, 2, cfg.Workers.Callback)
	require.EqualValues(t, 2, cfg.ReadJoinBacklogLimit)
}

func TestLoadRejectsInvalidDropPolicy(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cfg.yaml"
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  write:\n    capacity: 2\n    drop_policy: sideways\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("HAILOPIPE_WORKERS_CALLBACK", "5")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Workers.Callback)
}

func TestLoadFromFileOverridesModelPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cfg.yaml"
	require.NoError(t, os.WriteFile(path, []byte("model_path: /models/yolov8seg.hef\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/models/yolov8seg.hef", cfg.ModelPath)
}
