package daemon

import (
	"time"

	"github.com/sirupsen/logrus"
)

func WithInterval(interval time.Duration) func(*Daemon) {
	return func(d *Daemon) {
		d.interval = interval
	}
}

func WithLogger(l *logrus.Logger) func(*Daemon) {
	return func(d *Daemon) {
		d.l = l
	}
}
