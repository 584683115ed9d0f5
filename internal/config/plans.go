package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hray3182/CalBuddy/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// Plan is one entry of the subscription catalog.
type Plan struct {
	ID       string                    `yaml:"id"`
	Name     string                    `yaml:"name"`
	Status   models.SubscriptionStatus `yaml:"status"`
	Price    string                    `yaml:"price"`
	PriceID  string                    `yaml:"price_id"`
	Features []string                  `yaml:"features"`
}

// Paid reports whether the plan goes through checkout.
func (p Plan) Paid() bool {
	return p.PriceID != ""
}

type Catalog struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads the catalog from path, or the built-in one when path is empty.
func LoadPlans(path string) (*Catalog, error) {
	data := defaultPlans
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read plans file: %w", err)
		}
	}
	return ParsePlans(data)
}

func ParsePlans(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	if len(c.Plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}
	seen := make(map[string]bool)
	for i := range c.Plans {
		p := &c.Plans[i]
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" {
			return nil, fmt.Errorf("plan %d has no id", i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan %q", p.ID)
		}
		seen[p.ID] = true
		if p.Status == "" {
			p.Status = models.SubscriptionFree
		}
	}
	return &c, nil
}

// Find looks a plan up by id, case-insensitively.
func (c *Catalog) Find(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// ForStatus returns the plan matching a subscription status.
func (c *Catalog) ForStatus(s models.SubscriptionStatus) (Plan, bool) {
	for _, p := range c.Plans {
		if p.Status == s {
			return p, true
		}
	}
	return Plan{}, false
}
