package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"gopkg.in/yaml.v3"
)

// profilesFile is the layout of SHAKE_PROFILES_FILE:
//
//	profiles:
//	  gentle: {t1: 0.5, t2: 1.5, t3: 3}
type profilesFile struct {
	Profiles map[string]domain.Thresholds `yaml:"profiles"`
}

// LoadProfiles reads named threshold profiles from a YAML file. Every profile
// is validated; an invalid one fails the whole file.
func LoadProfiles(path string) (map[string]domain.Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SHAKE_PROFILES_FILE: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse SHAKE_PROFILES_FILE: %w", err)
	}

	for name, th := range f.Profiles {
		if err := th.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return f.Profiles, nil
}
