package source

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/larderlab/larder/pkg/ontology"
)

// Registry documents are whole-document TOML files, one per namespace.
// Unlike the NDJSON collections they are small and read as a unit, so a
// syntax error anywhere in the document fails the whole file.

type partsDoc struct {
	Parts []ontology.Part `toml:"part"`
}

type transformsDoc struct {
	Transforms []ontology.Transform `toml:"transform"`
}

type familiesDoc struct {
	Families []ontology.Family `toml:"family"`
}

type categoriesDoc struct {
	Categories []string `toml:"categories"`
}

type bucketsDoc struct {
	Buckets []ontology.Bucket `toml:"bucket"`
}

func decodeTOML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ReadParts reads the part registry document.
func ReadParts(path string) ([]ontology.Part, error) {
	var doc partsDoc
	if err := decodeTOML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Parts, nil
}

// ReadTransforms reads the transform registry document.
func ReadTransforms(path string) ([]ontology.Transform, error) {
	var doc transformsDoc
	if err := decodeTOML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Transforms, nil
}

// ReadFamilies reads the family registry document.
func ReadFamilies(path string) ([]ontology.Family, error) {
	var doc familiesDoc
	if err := decodeTOML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Families, nil
}

// ReadCategories reads the closed part-category registry.
func ReadCategories(path string) ([]string, error) {
	var doc categoriesDoc
	if err := decodeTOML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Categories, nil
}

// ReadBuckets reads the numeric-parameter bucketing configuration.
// Each bucket's arity and cutoff ordering is checked at load time.
func ReadBuckets(path string) ([]ontology.Bucket, error) {
	var doc bucketsDoc
	if err := decodeTOML(path, &doc); err != nil {
		return nil, err
	}
	for _, b := range doc.Buckets {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return doc.Buckets, nil
}
