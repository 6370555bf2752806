package model

import (
	"errors"
	"net/netip"
	"testing"
)

func TestSmallestFreeOffset(t *testing.T) {
	offset, err := SmallestFreeOffset(24, nil)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 1 {
		t.Errorf("expected offset 1 in empty network, got %d", offset)
	}

	offset, err = SmallestFreeOffset(24, []uint32{1, 2, 4})
	if err != nil {
		t.Fatal(err)
	}
	if offset != 3 {
		t.Errorf("expected gap offset 3, got %d", offset)
	}
}

func TestSmallestFreeOffsetReusesFreedOffset(t *testing.T) {
	offset, err := SmallestFreeOffset(24, []uint32{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if offset != 1 {
		t.Errorf("expected freed offset 1, got %d", offset)
	}
}

func TestSmallestFreeOffsetFullNetwork(t *testing.T) {
	// A /30 has offsets 0..3; 0 and 3 are reserved, leaving two members.
	offset, err := SmallestFreeOffset(30, []uint32{1})
	if err != nil {
		t.Fatal(err)
	}
	if offset != 2 {
		t.Errorf("expected last usable offset 2, got %d", offset)
	}

	_, err = SmallestFreeOffset(30, []uint32{1, 2})
	if !errors.Is(err, ErrNetworkFull) {
		t.Errorf("expected ErrNetworkFull, got %v", err)
	}
}

func TestHostAddress(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/24")

	addr, err := HostAddress(prefix, 2)
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "10.0.0.2" {
		t.Errorf("expected 10.0.0.2, got %s", addr)
	}

	addr, err = HostAddress(netip.MustParsePrefix("10.0.0.0/16"), 300)
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "10.0.1.44" {
		t.Errorf("expected 10.0.1.44, got %s", addr)
	}
}

func TestHostAddressOutOfRange(t *testing.T) {
	_, err := HostAddress(netip.MustParsePrefix("10.0.0.0/30"), 4)
	if err == nil {
		t.Error("expected error for offset past the broadcast address")
	}
}
