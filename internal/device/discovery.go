// Package device tracks the phones connected over MQTT and answers which
// payment apps each one has installed.
package device

import (
	"context"
	"errors"

	"voicepay/internal/catalog"
	"voicepay/internal/domain"
)

var (
	ErrUnknownDevice = errors.New("device has not reported in")
	ErrDeviceOffline = errors.New("device is offline")
)

// Discovery answers app queries from the packages devices last reported.
type Discovery struct {
	registry *Registry
	catalog  *catalog.Catalog
}

func NewDiscovery(registry *Registry, c *catalog.Catalog) *Discovery {
	return &Discovery{registry: registry, catalog: c}
}

func (d *Discovery) InstalledPaymentApps(_ context.Context, deviceID string) ([]domain.PaymentApp, error) {
	state, ok := d.registry.GetState(deviceID)
	if !ok {
		return nil, ErrUnknownDevice
	}
	if !state.Online {
		return nil, ErrDeviceOffline
	}
	return d.catalog.Resolve(state.Packages), nil
}

func (d *Discovery) IsInstalled(ctx context.Context, deviceID, appID string) (bool, error) {
	apps, err := d.InstalledPaymentApps(ctx, deviceID)
	if err != nil {
		return false, err
	}
	for _, app := range apps {
		if app.ID == appID {
			return true, nil
		}
	}
	return false, nil
}
