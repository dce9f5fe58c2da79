package policystore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// name of the set in a sets JSON file holding global blacklist terms
const GlobalBlacklistSet = "global-blacklist"

// Reads a JSON file mapping set names to lists of strings, and returns the global blacklist set from it.
func LoadGlobalBlacklistJSON(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return nil, fmt.Errorf("parsing sets file: %w", err)
	}
	return sets[GlobalBlacklistSet], nil
}
