package can

import "fmt"

// NewAdapterFunc constructs a backend Adapter for a given channel
// identifier (an interface name, a serial number, a socket path — meaning
// is backend-specific).
type NewAdapterFunc func(channel string, bitrate int) (Adapter, error)

var registry = make(map[string]NewAdapterFunc)

// RegisterInterface registers a backend constructor under a name. Backend
// packages call this from their own init(), mirroring the plugin pattern
// used for socketcan/usbcan/relay selection.
func RegisterInterface(name string, ctor NewAdapterFunc) {
	registry[name] = ctor
}

// NewAdapter looks up a previously registered backend by name and
// constructs it. Supported names today: "socketcan", "usbcan", "relay".
func NewAdapter(backend, channel string, bitrate int) (Adapter, error) {
	ctor, ok := registry[backend]
	if !ok {
		return nil, fmt.Errorf("can: unregistered backend %q", backend)
	}
	return ctor(channel, bitrate)
}
