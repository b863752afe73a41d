package inventory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultInterval = time.Hour

type Inventory struct {
	Jobs []Job `yaml:"jobs"`
}

// Job is one scheduled download. Params is handed to the job unchanged.
type Job struct {
	Name        string            `yaml:"name"`
	IntervalRaw string            `yaml:"interval"`
	Disabled    bool              `yaml:"disabled"`
	Params      map[string]string `yaml:"params"`

	Interval time.Duration `yaml:"-"`
}

func Load(path string) (*Inventory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(b, &inv); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}

	seen := make(map[string]struct{}, len(inv.Jobs))
	for i := range inv.Jobs {
		j := &inv.Jobs[i]
		j.Name = strings.TrimSpace(j.Name)
		if j.Name == "" {
			return nil, fmt.Errorf("job #%d: name is required", i+1)
		}
		if _, dup := seen[j.Name]; dup {
			return nil, fmt.Errorf("job %s: duplicate name", j.Name)
		}
		seen[j.Name] = struct{}{}

		// normalize defaults
		j.Interval = DefaultInterval
		if j.IntervalRaw != "" {
			d, err := time.ParseDuration(j.IntervalRaw)
			if err != nil {
				return nil, fmt.Errorf("job %s: interval: %w", j.Name, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("job %s: interval must be positive", j.Name)
			}
			j.Interval = d
		}
		if j.Params == nil {
			j.Params = map[string]string{}
		}
	}

	return &inv, nil
}

// Find returns the job called name.
func (inv *Inventory) Find(name string) (Job, bool) {
	for _, j := range inv.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Enabled returns the jobs that should be scheduled.
func (inv *Inventory) Enabled() []Job {
	out := make([]Job, 0, len(inv.Jobs))
	for _, j := range inv.Jobs {
		if !j.Disabled {
			out = append(out, j)
		}
	}
	return out
}
