package engine

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed paintings.yaml
var defaultPaintings []byte

type catalogFile struct {
	Paintings []PaintingSpec `yaml:"paintings"`
}

// DefaultPaintingSpecs is the shipped gallery: twelve paintings, asset
// directories "01" through "12".
func DefaultPaintingSpecs() ([]PaintingSpec, error) {
	return ParsePaintingSpecs(defaultPaintings)
}

func ParsePaintingSpecs(data []byte) ([]PaintingSpec, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Paintings) == 0 {
		return nil, ErrNoPaintings
	}
	return f.Paintings, nil
}

// LoadPaintingSpecs reads a catalog file, or the default list when path
// is empty.
func LoadPaintingSpecs(path string) ([]PaintingSpec, error) {
	if path == "" {
		return DefaultPaintingSpecs()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParsePaintingSpecs(data)
}
