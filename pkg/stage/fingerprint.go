package stage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/larderlab/larder/pkg/source"
)

// fingerprint computes the stage's cache key: a digest over every matched
// input file's content hash, the canonicalized parameters, and the code
// version. Any change to any of the three forces re-execution.
func fingerprint(env *Env, d Descriptor) (string, error) {
	var lines []string

	for _, in := range d.Inputs {
		root, err := rootDir(env, in.Root)
		if err != nil {
			return "", err
		}
		matches, err := resolveGlob(root, in.Pattern)
		if err != nil {
			return "", fmt.Errorf("stage %s: input %s/%s: %w", d.ID, in.Root, in.Pattern, err)
		}
		for _, rel := range matches {
			h, err := source.HashFile(filepath.Join(root, rel))
			if err != nil {
				return "", fmt.Errorf("stage %s: hash %s: %w", d.ID, rel, err)
			}
			lines = append(lines, "in:"+in.Root+"/"+rel+"="+h)
		}
	}

	params := make([]string, 0, len(d.Params))
	for k, v := range d.Params {
		params = append(params, "param:"+k+"="+v)
	}
	sort.Strings(params)
	lines = append(lines, params...)
	lines = append(lines, "code="+d.CodeVersion)

	return source.HashBytes([]byte(strings.Join(lines, "\n"))), nil
}

// resolveGlob expands a doublestar pattern under root and returns matched
// regular files, sorted, as root-relative paths. A root that does not exist
// yet resolves to no matches.
func resolveGlob(root, pattern string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

func rootDir(env *Env, root string) (string, error) {
	switch root {
	case RootSource:
		return env.SourceDir, nil
	case RootBuild:
		return env.BuildDir, nil
	default:
		return "", fmt.Errorf("unknown input root %q", root)
	}
}
