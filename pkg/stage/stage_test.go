package stage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStage_CreatesRunDirWithCaptures(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	run, err := s.Stage("sim_0", Files{})
	if err != nil {
		t.Fatalf("Stage error: %v", err)
	}
	if run.Path != filepath.Join(root, "sim_0") {
		t.Fatalf("unexpected run dir: %s", run.Path)
	}
	if _, err := os.Stat(run.Path); err != nil {
		t.Fatalf("run dir not created: %v", err)
	}
	if filepath.Base(run.OutFile) != "sim_0.out" || filepath.Base(run.ErrFile) != "sim_0.err" {
		t.Fatalf("unexpected capture names: %s / %s", run.OutFile, run.ErrFile)
	}
}

func TestStage_CopiesGlobMatches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "input", "a.dat"), "a")
	writeFile(t, filepath.Join(root, "input", "sub", "b.dat"), "b")
	writeFile(t, filepath.Join(root, "input", "skip.txt"), "x")

	s := New(root)
	run, err := s.Stage("sim_0", Files{Copy: []string{"input/**/*.dat"}})
	if err != nil {
		t.Fatalf("Stage error: %v", err)
	}

	for _, name := range []string{"a.dat", "b.dat"} {
		if _, err := os.Stat(filepath.Join(run.Path, name)); err != nil {
			t.Fatalf("%s not staged: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(run.Path, "skip.txt")); err == nil {
		t.Fatal("skip.txt should not have been staged")
	}
}

func TestStage_Symlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "data.bin"), "payload")

	s := New(root)
	run, err := s.Stage("sim_0", Files{Symlink: []string{"data.bin"}})
	if err != nil {
		t.Fatalf("Stage error: %v", err)
	}

	link := filepath.Join(run.Path, "data.bin")
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("symlink missing: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected a symlink")
	}

	// Restaging must tolerate the existing link.
	if _, err := s.Stage("sim_0", Files{Symlink: []string{"data.bin"}}); err != nil {
		t.Fatalf("restage error: %v", err)
	}
}

func TestStage_UnmatchedPatternFailsBeforeLaunch(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Stage("sim_0", Files{Copy: []string{"missing/**/*.dat"}})
	if err == nil {
		t.Fatal("expected an error for an unmatched pattern")
	}
}
