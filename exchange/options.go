// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
)

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
		switch v := o.(type) {
		case *clientOptions:
			v.withLogger = l
		case *testServerOptions:
			v.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional http client, which overrides the
// client built from the Config's CACert.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithCACert provides an optional PEM encoded CA certificate used when
// sending requests to the identity API.
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCACert = pem
		}
	}
}

// WithScope provides an optional scope to request from the identity API.
// The default is DefaultScope.
func WithScope(scope string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScope = scope
		}
	}
}

// WithAudience provides an optional audience to request from the identity
// API.
func WithAudience(aud string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudience = aud
		}
	}
}
