package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"crashes", "districts", "bikeinfra", "build", "config"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "overlays", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCrashesCommand_Flags(t *testing.T) {
	for _, name := range []string{"crashes", "victims", "output", "keep-age-ties"} {
		assert.NotNil(t, crashesCmd.Flags().Lookup(name), "crashes should have --%s flag", name)
	}
	assert.Equal(t, "false", crashesCmd.Flags().Lookup("keep-age-ties").DefValue)
}

func TestDistrictsCommand_Flags(t *testing.T) {
	for _, name := range []string{"source", "output", "centers-output", "tolerance", "source-epsg"} {
		assert.NotNil(t, districtsCmd.Flags().Lookup(name), "districts should have --%s flag", name)
	}
}

func TestBikeinfraCommand_Flags(t *testing.T) {
	for _, name := range []string{"source", "output", "tolerance"} {
		assert.NotNil(t, bikeinfraCmd.Flags().Lookup(name), "bikeinfra should have --%s flag", name)
	}
}

func TestBuildCommand_Flags(t *testing.T) {
	flag := buildCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag, "build command should have --concurrency flag")
	assert.Equal(t, "0", flag.DefValue)
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	oldCfg := cfg
	cfg = nil
	t.Cleanup(func() { cfg = oldCfg })
	return dir
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	dir := chdirTemp(t)
	configContent := `
crashes:
  keep_age_ties: true
log:
  level: info
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0o644))

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Crashes.KeepAgeTies)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	chdirTemp(t)

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	// Defaults should be applied.
	assert.Equal(t, "static/overlays/crashes.geojson", cfg.Crashes.OutputPath)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	dir := chdirTemp(t)
	configContent := `
log:
  level: NOT_A_LEVEL
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0o644))

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestCrashesCommand_Execute(t *testing.T) {
	dir := chdirTemp(t)
	tims := filepath.Join(dir, "raw_data", "TIMS")
	require.NoError(t, os.MkdirAll(tims, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tims, "Crashes.csv"), []byte(
		"CASE_ID,COLLISION_DATE,COLLISION_SEVERITY,POINT_X,POINT_Y\n"+
			"100,2021-03-04,2,-117.16,32.71\n"+
			"200,2021-05-06,4,,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tims, "Victims.csv"), []byte(
		"CASE_ID,VICTIM_AGE,VICTIM_ROLE\n100,31,4\n100,12,3\n"), 0o644))

	rootCmd.SetArgs([]string{"crashes"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "static", "overlays", "crashes.geojson"))
	require.NoError(t, err)

	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 12.0, fc.Features[0].Properties["VICTIM_AGE"])
	assert.Equal(t, "pedestrian", fc.Features[0].Properties["VICTIM_ROLE"])
	assert.Nil(t, fc.Features[1].Properties["VICTIM_AGE"])
}

func TestBikeinfraCommand_ExecuteWithFlags(t *testing.T) {
	dir := chdirTemp(t)
	src := filepath.Join(dir, "lanes.geojson")
	out := filepath.Join(dir, "out", "lanes.geojson")
	require.NoError(t, os.WriteFile(src, []byte(`{"type":"FeatureCollection","features":[`+
		`{"type":"Feature","id":3,"properties":{"class":"II","note":null},`+
		`"geometry":{"type":"LineString","coordinates":[[-117.16,32.72],[-117.155,32.72],[-117.15,32.72]]}}]}`), 0o644))

	rootCmd.SetArgs([]string{"bikeinfra", "--source", src, "--output", out})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`)
	assert.NotContains(t, string(data), `"note"`)
	assert.Contains(t, string(data), `"class":"II"`)
}
