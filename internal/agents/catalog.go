// Package agents holds the static catalog of chat agents. Each agent is a
// display descriptor plus the webhook endpoint its messages are relayed to.
package agents

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrAgentNotFound is returned when an agent id is not in the catalog.
var ErrAgentNotFound = errors.New("agent not found")

type Agent struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	WebhookURL string  `yaml:"webhook_url"`
	IconKey    *string `yaml:"icon_key,omitempty"`
	ImageRef   *string `yaml:"image_ref,omitempty"`
	Tagline    *string `yaml:"tagline,omitempty"`
}

// Category groups agents for display only.
type Category struct {
	Name   string  `yaml:"name"`
	Agents []Agent `yaml:"agents"`
}

// Catalog is immutable once built; lookups are safe for concurrent use.
type Catalog struct {
	categories []Category
	byID       map[string]Agent
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

// New validates categories and builds a Catalog from them.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Agent)}

	var total int
	for ci, cat := range categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("category %d: name is required", ci)
		}
		copied := Category{Name: cat.Name, Agents: make([]Agent, 0, len(cat.Agents))}
		for ai, a := range cat.Agents {
			if strings.TrimSpace(a.ID) == "" {
				return nil, fmt.Errorf("category %q agent %d: id is required", cat.Name, ai)
			}
			if _, dup := c.byID[a.ID]; dup {
				return nil, fmt.Errorf("duplicate agent id %q", a.ID)
			}
			if err := validateWebhookURL(a.WebhookURL); err != nil {
				return nil, fmt.Errorf("agent %q: %w", a.ID, err)
			}
			c.byID[a.ID] = a
			copied.Agents = append(copied.Agents, a)
			total++
		}
		c.categories = append(c.categories, copied)
	}
	if total == 0 {
		return nil, errors.New("catalog must contain at least one agent")
	}
	return c, nil
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url %q must be an absolute http(s) url", raw)
	}
	return nil
}

// Parse reads a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing agent catalog: %w", err)
	}
	return New(f.Categories)
}

// LoadFile reads and parses the YAML catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading agent catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Resolve looks up an agent by id.
func (c *Catalog) Resolve(id string) (Agent, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// DefaultAgentID is the first agent of the first non-empty category.
func (c *Catalog) DefaultAgentID() string {
	for _, cat := range c.categories {
		if len(cat.Agents) > 0 {
			return cat.Agents[0].ID
		}
	}
	return ""
}

// Categories returns a copy of the catalog's categories in display order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Agents: append([]Agent(nil), cat.Agents...)}
	}
	return out
}

// All returns every agent in display order.
func (c *Catalog) All() []Agent {
	var out []Agent
	for _, cat := range c.categories {
		out = append(out, cat.Agents...)
	}
	return out
}
