// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sqlitestore

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}

type options struct {
	withLogger hclog.Logger
}

func getOpts(opt ...Option) options {
	opts := options{withLogger: hclog.NewNullLogger()}
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}
