package bbs

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_boards.yaml
var defaultBoardsYAML []byte

// BoardSeed describes one predefined board.
type BoardSeed struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Order       int    `yaml:"order"`
}

type seedFile struct {
	Boards []BoardSeed `yaml:"boards"`
}

// DefaultSeeds returns the built-in board set.
func DefaultSeeds() []BoardSeed {
	seeds, err := ParseSeeds(defaultBoardsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default_boards.yaml: %v", err))
	}
	return seeds
}

// LoadSeeds reads a board set from a YAML file.
func LoadSeeds(path string) ([]BoardSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seeds, err := ParseSeeds(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seeds, nil
}

func ParseSeeds(raw []byte) ([]BoardSeed, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.Boards) == 0 {
		return nil, fmt.Errorf("no boards defined")
	}
	seen := make(map[string]struct{}, len(f.Boards))
	for _, b := range f.Boards {
		if b.ID == "" {
			return nil, fmt.Errorf("board without id")
		}
		if !validID(b.ID) {
			return nil, fmt.Errorf("board id %q: only letters, digits, '-' and '_' are allowed", b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("duplicate board id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return f.Boards, nil
}

func validID(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return id != ""
}
