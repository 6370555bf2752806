//go:build !linux

package wgnet

import "errors"

// NewDriver only works on linux; everywhere else the daemon refuses to
// start.
func NewDriver() (Driver, error) {
	return nil, errors.New("the wireguard netlink driver requires linux")
}
