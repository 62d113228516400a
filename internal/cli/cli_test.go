package cli

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/larderlab/larder/pkg/stage"
)

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", appName) {
		t.Errorf("cacheDir = %q", dir)
	}
}

func TestCacheDirHomeFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/tmp/fake-home")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if dir != filepath.Join("/tmp/fake-home", ".cache", appName) {
		t.Errorf("cacheDir = %q", dir)
	}
}

func TestSelectStages(t *testing.T) {
	all, err := selectStages(nil)
	if err != nil {
		t.Fatalf("selectStages(nil): %v", err)
	}
	if len(all) != len(stage.Stages()) {
		t.Errorf("expected full pipeline, got %d stages", len(all))
	}

	explicit, err := selectStages([]string{"all"})
	if err != nil || len(explicit) != len(all) {
		t.Errorf(`selectStages("all") = %d stages, %v`, len(explicit), err)
	}

	prefix, err := selectStages([]string{stage.StageSubstrates})
	if err != nil {
		t.Fatalf("selectStages(substrates): %v", err)
	}
	if len(prefix) != 3 || prefix[len(prefix)-1].ID != stage.StageSubstrates {
		t.Errorf("prefix = %v", stageIDs(prefix))
	}

	if _, err := selectStages([]string{"nope"}); err == nil {
		t.Error("unknown stage must error")
	}
}

func stageIDs(stages []stage.Descriptor) []string {
	ids := make([]string, 0, len(stages))
	for _, d := range stages {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	for _, name := range []string{"build", "validate", "graph", "serve", "clean", "cache", "completion"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestNewRunnerNoCache(t *testing.T) {
	c := New(io.Discard, LogInfo)

	r, err := c.newRunner(t.TempDir(), t.TempDir(), true, true)
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}
	if r.Cache == nil || !r.Refresh {
		t.Errorf("runner misconfigured: %+v", r)
	}
}
