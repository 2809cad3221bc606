package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.ngs.io/ocean-wms/internal/testutil/ncfixture"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("wmsctl %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestClassify(t *testing.T) {
	path := ncfixture.SGrid(t, t.TempDir())
	if got := strings.TrimSpace(execute(t, "classify", path)); got != "sgrid" {
		t.Errorf("classify = %q, want sgrid", got)
	}
}

func TestTopologyAndCacheCommands(t *testing.T) {
	dir := t.TempDir()
	uri := ncfixture.RGrid(t, dir)
	catalogPath := filepath.Join(dir, "datasets.yaml")
	if err := os.WriteFile(catalogPath, []byte("datasets:\n  - slug: regular\n    uri: "+uri+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATASETS_FILE", catalogPath)
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("REGISTRY_PATH", filepath.Join(dir, "registry.db"))

	out := execute(t, "topology", "build", "regular")
	if !strings.Contains(out, "regular: 4 layers") {
		t.Errorf("unexpected build output:\n%s", out)
	}
	if out := execute(t, "cache", "status", "regular"); !strings.Contains(out, "topology cached=true images=0") {
		t.Errorf("unexpected status output:\n%s", out)
	}
	execute(t, "cache", "clear", "regular")
	if out := execute(t, "cache", "status", "regular"); !strings.Contains(out, "topology cached=false") {
		t.Errorf("unexpected status output after clear:\n%s", out)
	}
}

func TestDefaultsImport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATASETS_FILE", filepath.Join(dir, "datasets.yaml"))
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("REGISTRY_PATH", filepath.Join(dir, "registry.db"))

	csvPath := filepath.Join(dir, "defaults.csv")
	content := "std_name,units,default_min,default_max,logscale\n" +
		"sea_water_temperature,degC,-2,30,false\n" +
		"mass_concentration_of_chlorophyll_in_sea_water,mg m-3,0.01,10,true\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if out := execute(t, "defaults", "import", csvPath); !strings.Contains(out, "imported 2 variable defaults") {
		t.Errorf("unexpected import output:\n%s", out)
	}
}
