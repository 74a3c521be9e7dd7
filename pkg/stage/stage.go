// Package stage materializes run directories for launched entities.
//
// Staging creates one directory per entity under the experiment path,
// resolves attached input file globs against the experiment directory, and
// copies or symlinks the matches into each run directory. It also assigns
// the stdout/stderr capture paths the launcher writes to.
//
// Tagged-file templating is out of scope; staging is plain file plumbing.
package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Files lists input files attached to an entity.
type Files struct {
	// Copy are glob patterns (doublestar syntax) of files copied into the
	// run directory.
	Copy []string

	// Symlink are glob patterns of files symlinked into the run
	// directory.
	Symlink []string
}

// Stager creates run directories under an experiment root.
type Stager struct {
	// Root is the experiment directory; globs resolve relative to it.
	Root string
}

// New returns a Stager rooted at the experiment directory.
func New(root string) *Stager {
	return &Stager{Root: root}
}

// RunDir is one staged run directory with its capture file paths.
type RunDir struct {
	Path    string
	OutFile string
	ErrFile string
}

// Stage creates the run directory for an entity and stages its attached
// files. An existing directory is reused so restarts keep their captures.
func (s *Stager) Stage(entityName string, files Files) (*RunDir, error) {
	dir := filepath.Join(s.Root, entityName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir for %s: %w", entityName, err)
	}

	copies, err := s.resolve(files.Copy)
	if err != nil {
		return nil, err
	}
	for _, src := range copies {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return nil, fmt.Errorf("stage %s: %w", src, err)
		}
	}

	links, err := s.resolve(files.Symlink)
	if err != nil {
		return nil, err
	}
	for _, src := range links {
		dst := filepath.Join(dir, filepath.Base(src))
		// Replace a stale link from a prior staging of the same entity.
		if _, lerr := os.Lstat(dst); lerr == nil {
			if rerr := os.Remove(dst); rerr != nil {
				return nil, fmt.Errorf("stage %s: %w", src, rerr)
			}
		}
		if err := os.Symlink(src, dst); err != nil {
			return nil, fmt.Errorf("stage %s: %w", src, err)
		}
	}

	return &RunDir{
		Path:    dir,
		OutFile: filepath.Join(dir, entityName+".out"),
		ErrFile: filepath.Join(dir, entityName+".err"),
	}, nil
}

// resolve expands glob patterns against the experiment root, returning
// absolute paths. A pattern with no matches is an error: a missing input
// file should fail before launch, not during the run.
func (s *Stager) resolve(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid file pattern %q", pattern)
		}
		matches, err := doublestar.Glob(os.DirFS(s.Root), pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("file pattern %q matched nothing under %s", pattern, s.Root)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(s.Root, m))
		}
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
