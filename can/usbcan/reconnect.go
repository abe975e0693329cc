package usbcan

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// State reports the adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) markDisconnected() {
	a.mu.Lock()
	a.state = StateDisconnected
	a.mu.Unlock()
}

// RunDeviceManager runs the low-priority reconnect loop of §4.4: while the
// adapter is in StateDisconnected, it retries open() on a debounced
// interval until stop is closed or the device comes back. It is meant to
// run on its own low-priority goroutine, separate from the RX/TX threads.
func (a *Adapter) RunDeviceManager(stop <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.reconnectDebounce)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if a.State() != StateDisconnected {
				continue
			}
			a.mu.Lock()
			a.state = StateReconnecting
			a.mu.Unlock()
			if err := a.open(); err != nil {
				log.WithError(err).Debug("usbcan: reconnect attempt failed")
				a.markDisconnected()
				continue
			}
			log.Info("usbcan: device reconnected")
		}
	}
}
