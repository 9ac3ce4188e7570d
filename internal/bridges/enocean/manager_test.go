package enocean

import (
	"errors"
	"testing"
)

func testManagerGateway(t *testing.T, id string) *Gateway {
	t.Helper()
	tr := NewTransport(newPipeDialer(0), ReconnectPolicy{}, nil)
	g, err := NewGateway(GatewayOptions{ID: id, BaseID: DeviceID{0xFF, 0xAA, 0x80, 0x00}}, tr, nil)
	if err != nil {
		t.Fatalf("NewGateway(%q) error = %v", id, err)
	}
	return g
}

func TestManager_AddAndGet(t *testing.T) {
	m := NewManager()

	gw := testManagerGateway(t, "gw1")
	if err := m.Add(gw); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, ok := m.Get("gw1")
	if !ok || got != gw {
		t.Errorf("Get(gw1) = %v, %v; want the added gateway", got, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestManager_AddRejectsDuplicatesAndNil(t *testing.T) {
	m := NewManager()

	if err := m.Add(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Add(nil) error = %v, want ErrInvalidConfig", err)
	}

	if err := m.Add(testManagerGateway(t, "gw1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add(testManagerGateway(t, "gw1")); !errors.Is(err, ErrDuplicateGateway) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateGateway", err)
	}
}

func TestManager_RemoveClosesGateway(t *testing.T) {
	m := NewManager()
	gw := testManagerGateway(t, "gw1")
	if err := m.Add(gw); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := m.Remove("gw1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := m.Get("gw1"); ok {
		t.Error("gateway still present after Remove")
	}
	if gw.State() != StateDisconnected {
		t.Errorf("removed gateway state = %v, want Disconnected", gw.State())
	}

	// Unknown ids are a no-op.
	if err := m.Remove("missing"); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
}

func TestManager_IDsAndAllSorted(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := m.Add(testManagerGateway(t, id)); err != nil {
			t.Fatalf("Add(%q) error = %v", id, err)
		}
	}

	ids := m.IDs()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}

	all := m.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(all))
	}
	for i, g := range all {
		if g.ID() != want[i] {
			t.Errorf("All()[%d].ID() = %q, want %q", i, g.ID(), want[i])
		}
	}
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager()
	gws := []*Gateway{
		testManagerGateway(t, "gw1"),
		testManagerGateway(t, "gw2"),
	}
	for _, g := range gws {
		if err := m.Add(g); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	if err := m.CloseAll(); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after CloseAll, want 0", m.Len())
	}
	for _, g := range gws {
		if g.State() != StateDisconnected {
			t.Errorf("gateway %q state = %v, want Disconnected", g.ID(), g.State())
		}
	}
}
