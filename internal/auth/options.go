// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"log/slog"
	"time"
)

// serviceOptions are the optional collaborators shared by the services.
type serviceOptions struct {
	logger    *slog.Logger
	observer  Observer
	generator CodeGenerator
	now       func() time.Time
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:    slog.Default(),
		observer:  NopObserver,
		generator: GenerateCode,
		now:       time.Now,
	}
}

// ServiceOption configures a service at construction.
type ServiceOption func(*serviceOptions)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer Observer) ServiceOption {
	return func(o *serviceOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithCodeGenerator replaces GenerateCode.
func WithCodeGenerator(generator CodeGenerator) ServiceOption {
	return func(o *serviceOptions) {
		if generator != nil {
			o.generator = generator
		}
	}
}

// WithServiceClock replaces time.Now. Pass the same clock given to the
// CredentialStore so both agree on expiry.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyServiceOptions(opts []ServiceOption) serviceOptions {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
