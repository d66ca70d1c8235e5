package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxpost/internal/profile"
)

type profilesFile struct {
	Profiles []profile.Profile `yaml:"profiles"`
}

// LoadProfilesFile reads custom profiles from a YAML file. Every entry is
// validated; the first invalid profile fails the whole load so a typo in
// the file is caught at startup rather than silently dropped.
func LoadProfilesFile(path string) ([]profile.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	for i := range f.Profiles {
		f.Profiles[i].IsBuiltIn = false
		if err := profile.Validate(f.Profiles[i]); err != nil {
			return nil, fmt.Errorf("profiles file entry %d: %w", i, err)
		}
	}
	return f.Profiles, nil
}
