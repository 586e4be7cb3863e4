package inverter

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Device is an open handle to one inverter. Implementations need not be safe
// for concurrent use; the controller serialises all access.
type Device interface {
	// Query issues one telemetry query and returns its decoded response.
	// The concrete type of the response always matches kind.
	Query(ctx context.Context, kind QueryKind) (Response, error)

	// Execute sends one command and waits for the device to acknowledge it.
	Execute(ctx context.Context, cmd Command) error

	// Close releases the handle.
	Close() error
}

// Dialer opens device handles from a locator string, usually a special file
// path such as /dev/hidraw0.
type Dialer interface {
	Open(ctx context.Context, path string) (Device, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, path string) (Device, error)

// Open calls f.
func (f DialerFunc) Open(ctx context.Context, path string) (Device, error) {
	return f(ctx, path)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a driver available by name. It panics if d is nil or the
// name is already taken, matching database/sql.Register.
func Register(name string, d Dialer) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("inverter: Register dialer is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("inverter: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Dialer, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, name, driverNames())
	}
	return d, nil
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return driverNames()
}

func driverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
