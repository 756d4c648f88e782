package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicepay/internal/catalog"
)

func newTestRegistry(ttl time.Duration) (*Registry, *time.Time) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(ttl)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestSetAppsVersioning(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	r.SetApps("dev-1", 2, []string{"com.phonepe.app"})
	r.SetApps("dev-1", 1, []string{"net.one97.paytm"})
	r.SetApps("dev-1", 0, []string{"net.one97.paytm"})

	st, ok := r.GetState("dev-1")
	if !ok {
		t.Fatalf("state missing")
	}
	if st.AppsVersion != 2 || len(st.Packages) != 1 || st.Packages[0] != "com.phonepe.app" {
		t.Fatalf("state=%+v, want version 2 with phonepe", st)
	}

	r.SetApps("dev-1", 3, nil)
	st, _ = r.GetState("dev-1")
	if st.AppsVersion != 3 || len(st.Packages) != 0 {
		t.Fatalf("state=%+v, want version 3 with no packages", st)
	}
}

func TestGetStateCopiesPackages(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	r.SetApps("dev-1", 1, []string{"com.phonepe.app"})
	st, _ := r.GetState("dev-1")
	st.Packages[0] = "mutated"

	again, _ := r.GetState("dev-1")
	if again.Packages[0] != "com.phonepe.app" {
		t.Fatalf("registry state leaked to caller")
	}
}

func TestExpiryMarksOffline(t *testing.T) {
	r, now := newTestRegistry(time.Minute)
	r.SetApps("dev-1", 1, []string{"com.phonepe.app"})
	if got := len(r.ListOnline()); got != 1 {
		t.Fatalf("online=%d, want 1", got)
	}

	*now = now.Add(2 * time.Minute)
	st, ok := r.GetState("dev-1")
	if !ok || st.Online {
		t.Fatalf("expired device should be reported offline, got %+v", st)
	}
	if got := len(r.ListOnline()); got != 0 {
		t.Fatalf("online=%d, want 0", got)
	}

	r.Touch("dev-1")
	if st, _ := r.GetState("dev-1"); !st.Online || len(st.Packages) != 1 {
		t.Fatalf("heartbeat should revive device and keep packages, got %+v", st)
	}
}

func TestDiscovery(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	d := NewDiscovery(r, catalog.Default())
	ctx := context.Background()

	if _, err := d.InstalledPaymentApps(ctx, "ghost"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err=%v, want ErrUnknownDevice", err)
	}

	r.SetApps("dev-1", 1, []string{"com.whatsapp", "net.one97.paytm"})
	apps, err := d.InstalledPaymentApps(ctx, "dev-1")
	if err != nil || len(apps) != 1 || apps[0].DisplayName != "Paytm" {
		t.Fatalf("InstalledPaymentApps()=(%v,%v)", apps, err)
	}
	if ok, err := d.IsInstalled(ctx, "dev-1", "net.one97.paytm"); err != nil || !ok {
		t.Fatalf("IsInstalled(paytm)=(%v,%v), want true", ok, err)
	}
	if ok, _ := d.IsInstalled(ctx, "dev-1", "com.whatsapp"); ok {
		t.Fatalf("non-payment package must not count as installed")
	}

	r.SetOnline("dev-1", false)
	if _, err := d.InstalledPaymentApps(ctx, "dev-1"); !errors.Is(err, ErrDeviceOffline) {
		t.Fatalf("err=%v, want ErrDeviceOffline", err)
	}
}
