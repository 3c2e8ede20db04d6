package di

import "go.uber.org/zap"

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for registration and lifecycle debug
// output. The default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type registerOptions struct {
	override   bool
	descriptor *CallableDescriptor
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOptions)

// AllowOverride permits the registration to replace an existing provider for
// the same interface instead of failing.
func AllowOverride() RegisterOption {
	return func(ro *registerOptions) {
		ro.override = true
	}
}

// WithDescriptor supplies an externally built callable descriptor instead of
// deriving one from the factory by reflection. Descriptors from a signature
// inspector carry real parameter names and positional-only flags.
func WithDescriptor(desc *CallableDescriptor) RegisterOption {
	return func(ro *registerOptions) {
		ro.descriptor = desc
	}
}
