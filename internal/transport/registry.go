// ABOUTME: Named driver registry for transport implementations
// ABOUTME: Drivers register themselves at init time, database/sql style

package transport

import (
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a transport driver available under the given name.
// It panics on a duplicate or nil registration, mirroring database/sql.
func Register(name string, dialer Dialer) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if dialer == nil {
		panic("transport: Register dialer is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("transport: Register called twice for driver " + name)
	}
	drivers[name] = dialer
}

// Dial constructs a client using the named driver.
func Dial(name string, cfg Config) (Client, error) {
	driversMu.RLock()
	dialer, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("transport: unknown driver %q (available: %v)", name, Drivers())
	}
	return dialer(cfg)
}

// LookupDialer returns the registered dialer for a driver name, if any.
func LookupDialer(name string) (Dialer, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	return d, ok
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
