package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/larderlab/larder/pkg/ontology"
)

// Well-known source file names inside an ontology directory.
const (
	FileTaxa       = "taxa.ndjson"
	FileRules      = "rules.ndjson"
	FileSeeds      = "seeds.ndjson"
	FileParts      = "parts.toml"
	FileTransforms = "transforms.toml"
	FileFamilies   = "families.toml"
	FileCategories = "categories.toml"
	FileBuckets    = "buckets.toml"
)

// RequiredFiles lists the files every ontology source directory must contain.
// Buckets and seeds are optional: a fresh ontology may have neither curated
// candidates nor bucketing rules yet.
var RequiredFiles = []string{
	FileTaxa, FileRules, FileParts, FileTransforms, FileFamilies, FileCategories,
}

// Tree is a fully loaded source directory: typed collections plus per-file
// content hashes for stage fingerprinting.
type Tree struct {
	Dir string

	Taxa  []Record[ontology.Taxon]
	Rules []Record[ontology.Rule]
	Seeds []Record[ontology.Seed]

	Parts      []ontology.Part
	Transforms []ontology.Transform
	Families   []ontology.Family
	Categories []string
	Buckets    []ontology.Bucket

	// FileHashes maps source file name to its sha256 content hash.
	FileHashes map[string]string
}

// Load reads the complete source tree at dir.
//
// Parse failures are fatal: a malformed source file blocks the run before any
// stage executes, per the fail-closed discipline. Semantic problems (dangling
// references, bad ranks) are the validator's job, not Load's.
func Load(dir string) (*Tree, error) {
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("source dir %s: missing %s: %w", dir, name, err)
		}
	}

	t := &Tree{Dir: dir, FileHashes: make(map[string]string)}

	var err error
	if t.Taxa, err = ReadNDJSON[ontology.Taxon](filepath.Join(dir, FileTaxa)); err != nil {
		return nil, err
	}
	if t.Rules, err = ReadNDJSON[ontology.Rule](filepath.Join(dir, FileRules)); err != nil {
		return nil, err
	}
	if t.Parts, err = ReadParts(filepath.Join(dir, FileParts)); err != nil {
		return nil, err
	}
	if t.Transforms, err = ReadTransforms(filepath.Join(dir, FileTransforms)); err != nil {
		return nil, err
	}
	if t.Families, err = ReadFamilies(filepath.Join(dir, FileFamilies)); err != nil {
		return nil, err
	}
	if t.Categories, err = ReadCategories(filepath.Join(dir, FileCategories)); err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(filepath.Join(dir, FileSeeds)); statErr == nil {
		if t.Seeds, err = ReadNDJSON[ontology.Seed](filepath.Join(dir, FileSeeds)); err != nil {
			return nil, err
		}
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileBuckets)); statErr == nil {
		if t.Buckets, err = ReadBuckets(filepath.Join(dir, FileBuckets)); err != nil {
			return nil, err
		}
	}

	if err := t.hashFiles(); err != nil {
		return nil, err
	}
	return t, nil
}

// hashFiles records the content hash of every present source file.
func (t *Tree) hashFiles() error {
	names := append([]string{}, RequiredFiles...)
	names = append(names, FileSeeds, FileBuckets)
	for _, name := range names {
		path := filepath.Join(t.Dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		h, err := HashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}
		t.FileHashes[name] = h
	}
	return nil
}

// Fingerprint returns a deterministic digest over all source file hashes.
// Sorted by file name so directory iteration order never matters.
func (t *Tree) Fingerprint() string {
	names := make([]string, 0, len(t.FileHashes))
	for name := range t.FileHashes {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf []byte
	for _, name := range names {
		buf = append(buf, name...)
		buf = append(buf, '=')
		buf = append(buf, t.FileHashes[name]...)
		buf = append(buf, '\n')
	}
	return HashBytes(buf)
}

// Registry builds the immutable definition snapshot from the tree's
// registry documents.
func (t *Tree) Registry() *ontology.Registry {
	return ontology.NewRegistry(t.Transforms, t.Parts, t.Families, t.Categories)
}
