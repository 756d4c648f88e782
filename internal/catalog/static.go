package catalog

import (
	"context"

	"voicepay/internal/domain"
)

// StaticDiscovery serves a fixed list of installed apps for every device.
type StaticDiscovery struct {
	Apps []domain.PaymentApp
	Err  error
}

// NewStaticDiscovery resolves package ids or short names ("phonepe", "paytm")
// against the catalog. Unknown names are returned so callers can report them.
func NewStaticDiscovery(c *Catalog, names []string) (*StaticDiscovery, []string) {
	var ids, unknown []string
	for _, name := range names {
		if id, ok := c.match(name); ok {
			ids = append(ids, id)
			continue
		}
		unknown = append(unknown, name)
	}
	return &StaticDiscovery{Apps: c.Resolve(ids)}, unknown
}

func (s *StaticDiscovery) InstalledPaymentApps(_ context.Context, _ string) ([]domain.PaymentApp, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.PaymentApp(nil), s.Apps...), nil
}

func (s *StaticDiscovery) IsInstalled(_ context.Context, _ string, appID string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	for _, app := range s.Apps {
		if app.ID == appID {
			return true, nil
		}
	}
	return false, nil
}
