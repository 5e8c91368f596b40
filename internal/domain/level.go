package domain

import "fmt"

// Level is the qualitative classification of a shake intensity.
// Levels are ordered: Still < Mild < Moderate < Strong.
type Level int

const (
	Still Level = iota
	Mild
	Moderate
	Strong
)

var levelNames = [...]string{"still", "mild", "moderate", "strong"}

// Levels lists every level in ascending order.
func Levels() []Level {
	return []Level{Still, Mild, Moderate, Strong}
}

func (l Level) String() string {
	if l < Still || l > Strong {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText encodes the level as its lowercase label.
func (l Level) MarshalText() ([]byte, error) {
	if l < Still || l > Strong {
		return nil, fmt.Errorf("unknown level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText decodes a lowercase label produced by MarshalText.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel maps a label back to its Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Still, fmt.Errorf("unknown level %q", s)
}
