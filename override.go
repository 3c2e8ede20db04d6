package di

import "sync"

// Override installs instance as a scoped substitution for iface, shortcutting
// all provider and scope resolution while installed. A provider must already
// be registered for iface. The returned restore function removes the
// substitution and is safe to call from a defer, so the override is released
// on every exit path including panics. restore is idempotent.
func (c *Container) Override(iface any, instance any) (restore func(), err error) {
	if !c.Has(iface) {
		return nil, &NotRegisteredError{Interface: iface}
	}

	c.overrideMu.Lock()
	c.overrides[iface] = instance
	c.overrideMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.overrideMu.Lock()
			delete(c.overrides, iface)
			c.overrideMu.Unlock()
		})
	}, nil
}
