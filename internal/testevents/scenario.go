package testevents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes the simulated venue.
type Scenario struct {
	// StoryBaseURL prefixes device and receiver story URLs.
	StoryBaseURL string `yaml:"story_base_url"`

	// PeopleRatio is the share of devices carried by a person.
	PeopleRatio float64 `yaml:"people_ratio"`

	// DisappearRatio is the chance a step is a disappearance.
	DisappearRatio float64 `yaml:"disappear_ratio"`

	Directories []DirectorySpec `yaml:"directories"`
}

// DirectorySpec is one location and its receivers.
type DirectorySpec struct {
	ID        string   `yaml:"id"`
	Receivers []string `yaml:"receivers"`
}

// DefaultScenario is used when no scenario file is given.
func DefaultScenario() *Scenario {
	return &Scenario{
		StoryBaseURL:   "http://stories.local",
		PeopleRatio:    0.7,
		DisappearRatio: 0.05,
		Directories: []DirectorySpec{
			{ID: "venue:first:lobby", Receivers: []string{"rx-lobby-1", "rx-lobby-2"}},
			{ID: "venue:first:hall", Receivers: []string{"rx-hall-1"}},
			{ID: "venue:second:cafe", Receivers: []string{"rx-cafe-1"}},
			{ID: "venue:second:gallery", Receivers: []string{"rx-gallery-1", "rx-gallery-2"}},
		},
	}
}

// LoadScenario reads a YAML scenario file. Missing fields take the default
// scenario's values.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc := DefaultScenario()
	sc.Directories = nil
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Directories) == 0 {
		return nil, fmt.Errorf("scenario %s: no directories", path)
	}
	for i, d := range sc.Directories {
		if d.ID == "" {
			return nil, fmt.Errorf("scenario %s: directory %d has no id", path, i)
		}
		if len(d.Receivers) == 0 {
			sc.Directories[i].Receivers = []string{"rx-" + d.ID}
		}
	}
	return sc, nil
}
