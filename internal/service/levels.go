package service

import (
	_ "embed"
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/limbo/stakesave/pkg/entity"
)

//go:embed levels.yaml
var defaultLevels []byte

type LevelCatalog struct {
	levels []entity.Level
}

// LoadLevels reads the catalog from path, or the built-in one when path is empty
func LoadLevels(path string) (*LevelCatalog, error) {
	data := defaultLevels
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.New("reading levels file error: " + err.Error())
		}
	}
	return ParseLevels(data)
}

func ParseLevels(data []byte) (*LevelCatalog, error) {
	var levels []entity.Level
	if err := yaml.Unmarshal(data, &levels); err != nil {
		return nil, errors.New("parsing levels error: " + err.Error())
	}
	seen := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		key := strings.ToLower(l.Name)
		if key == "" {
			return nil, errors.New("level without name")
		}
		if _, ok := seen[key]; ok {
			return nil, errors.New("duplicate level " + l.Name)
		}
		seen[key] = struct{}{}
		if l.MinDays <= 0 || l.MinDays > l.MaxDays || l.MinDailyAmount <= 0 || l.MinDailyAmount > l.MaxDailyAmount {
			return nil, errors.New("level " + l.Name + " has invalid ranges")
		}
		if l.PenaltyPercent < 0 || l.PenaltyPercent > 100 {
			return nil, errors.New("level " + l.Name + " has invalid penalty percent")
		}
	}
	return &LevelCatalog{levels: levels}, nil
}

func DefaultLevels() *LevelCatalog {
	c, err := ParseLevels(defaultLevels)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *LevelCatalog) All() []entity.Level {
	out := make([]entity.Level, len(c.levels))
	copy(out, c.levels)
	return out
}

func (c *LevelCatalog) Find(name string) (entity.Level, bool) {
	for _, l := range c.levels {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return entity.Level{}, false
}
