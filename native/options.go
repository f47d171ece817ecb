// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package native

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*gatewayOptions); ok {
			o.withLogger = l
		}
	}
}

// WithExecutor provides an optional executor which runs result deliveries
// and consent parsing. The default runs each in a new goroutine.
func WithExecutor(fn func(func())) Option {
	return func(o interface{}) {
		if o, ok := o.(*gatewayOptions); ok {
			o.withExecutor = fn
		}
	}
}

type gatewayOptions struct {
	withLogger   hclog.Logger
	withExecutor func(func())
}

func gatewayDefaults() gatewayOptions {
	return gatewayOptions{
		withLogger:   hclog.NewNullLogger(),
		withExecutor: func(fn func()) { go fn() },
	}
}

func getGatewayOpts(opt ...Option) gatewayOptions {
	opts := gatewayDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	if opts.withExecutor == nil {
		opts.withExecutor = gatewayDefaults().withExecutor
	}
	return opts
}
