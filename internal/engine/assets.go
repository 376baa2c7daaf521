package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrUnknownAsset = errors.New("unknown asset")

// Assets maps logical asset names ("01/a.png", "tada.wav") to the URLs
// the page loads them from.
type Assets map[string]string

// LoadAssets reads a JSON object of name -> URL.
func LoadAssets(path string) (Assets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets %s: %w", path, err)
	}
	return ParseAssets(data)
}

func ParseAssets(data []byte) (Assets, error) {
	var a Assets
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse assets: %w", err)
	}
	return a, nil
}

func (a Assets) URL(name string) (string, error) {
	url, ok := a[name]
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownAsset)
	}
	return url, nil
}
