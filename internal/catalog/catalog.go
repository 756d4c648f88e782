// Package catalog knows which Android packages are UPI payment apps, what to
// call them, and which one to prefer when several are installed.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voicepay/internal/domain"
)

//go:embed apps.yaml
var defaultCatalog []byte

var ErrEmptyCatalog = errors.New("catalog has no apps")

type entry struct {
	ID             string `yaml:"id"`
	DisplayName    string `yaml:"display_name"`
	Recommendation string `yaml:"recommendation"`
}

type file struct {
	Preferred []string `yaml:"preferred"`
	Apps      []entry  `yaml:"apps"`
}

type Catalog struct {
	apps      []entry
	byID      map[string]entry
	preferred []string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded app catalog: %v", err))
	}
	return c
}

// Load reads a catalog file; an empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("app catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	c := &Catalog{byID: make(map[string]entry, len(f.Apps))}
	for _, e := range f.Apps {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			return nil, errors.New("app entry without id")
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate app id %q", e.ID)
		}
		if strings.TrimSpace(e.DisplayName) == "" {
			e.DisplayName = e.ID
		}
		c.apps = append(c.apps, e)
		c.byID[e.ID] = e
	}
	if len(c.apps) == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, id := range f.Preferred {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("preferred app %q is not in the catalog", id)
		}
		c.preferred = append(c.preferred, id)
	}
	return c, nil
}

// Apps lists every known app in catalog order.
func (c *Catalog) Apps() []domain.PaymentApp {
	out := make([]domain.PaymentApp, 0, len(c.apps))
	for _, e := range c.apps {
		out = append(out, domain.PaymentApp{ID: e.ID, DisplayName: e.DisplayName})
	}
	return out
}

func (c *Catalog) Lookup(id string) (domain.PaymentApp, bool) {
	e, ok := c.byID[id]
	if !ok {
		return domain.PaymentApp{}, false
	}
	return domain.PaymentApp{ID: e.ID, DisplayName: e.DisplayName}, true
}

func (c *Catalog) PreferenceOrder() []string {
	return append([]string(nil), c.preferred...)
}

// Resolve maps reported package names to known payment apps, preserving the
// reported order and dropping packages that are not payment apps.
func (c *Catalog) Resolve(packages []string) []domain.PaymentApp {
	seen := make(map[string]bool, len(packages))
	var out []domain.PaymentApp
	for _, pkg := range packages {
		pkg = strings.TrimSpace(pkg)
		if seen[pkg] {
			continue
		}
		if app, ok := c.Lookup(pkg); ok {
			seen[pkg] = true
			out = append(out, app)
		}
	}
	return out
}

// Preferred picks the first installed app in preference order, falling back to
// the first installed app.
func (c *Catalog) Preferred(installed []domain.PaymentApp) (domain.PaymentApp, bool) {
	if len(installed) == 0 {
		return domain.PaymentApp{}, false
	}
	for _, id := range c.preferred {
		for _, app := range installed {
			if app.ID == id {
				return app, true
			}
		}
	}
	return installed[0], true
}

// Recommendations returns "Name - reason" lines for apps worth installing.
func (c *Catalog) Recommendations() []string {
	var out []string
	for _, id := range c.preferred {
		e := c.byID[id]
		if e.Recommendation == "" {
			continue
		}
		out = append(out, e.DisplayName+" - "+e.Recommendation)
	}
	return out
}

// Status reports installed or not for every known app.
func (c *Catalog) Status(installed []domain.PaymentApp) map[string]bool {
	out := make(map[string]bool, len(c.apps))
	for _, e := range c.apps {
		out[e.ID] = false
	}
	for _, app := range installed {
		if _, ok := out[app.ID]; ok {
			out[app.ID] = true
		}
	}
	return out
}

// match accepts a package id, a display name ("Google Pay", "googlepay") or
// the first word of a display name ("bhim").
func (c *Catalog) match(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := c.byID[name]; ok {
		return name, true
	}
	key := squash(name)
	if key == "" {
		return "", false
	}
	for _, e := range c.apps {
		if squash(e.DisplayName) == key {
			return e.ID, true
		}
		if first, _, _ := strings.Cut(strings.ToLower(e.DisplayName), " "); first == key {
			return e.ID, true
		}
	}
	return "", false
}

func squash(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
