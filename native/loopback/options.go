// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import (
	"context"

	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
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

// ResultHandler receives the payload of every consent redirect the loopback
// listener accepts. It's typically wired to the owner's re-entry point with
// the consent request code.
type ResultHandler func(ctx context.Context, payload native.Payload)

// WithCACert provides an optional PEM encoded CA certificate used when
// sending requests to the identity provider.
//
// Valid for: Config
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCACert = pem
		}
	}
}

// WithSupportedSigningAlgs overrides the algorithms accepted for id_token
// signatures.
//
// Valid for: Config
func WithSupportedSigningAlgs(alg ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = alg
		}
	}
}

// WithListenAddr overrides the loopback address the redirect listener binds
// to. The port may be 0.
//
// Valid for: Config
func WithListenAddr(addr string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withListenAddr = addr
		}
	}
}

// WithCallbackPath overrides the path of the redirect listener.
//
// Valid for: Config
func WithCallbackPath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCallbackPath = path
		}
	}
}

// WithUILocales provides the end user's preferred languages for the consent
// UI, as a list of language tags ordered by preference.
//
// Valid for: Config
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Platform
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*platformOptions); ok {
			o.withLogger = l
		}
	}
}

// WithResultHandler provides the handler for consent redirects.
//
// Valid for: Platform
func WithResultHandler(fn ResultHandler) Option {
	return func(o interface{}) {
		if o, ok := o.(*platformOptions); ok {
			o.withResultHandler = fn
		}
	}
}

type platformOptions struct {
	withLogger        hclog.Logger
	withResultHandler ResultHandler
}

func platformDefaults() platformOptions {
	return platformOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getPlatformOpts(opt ...Option) platformOptions {
	opts := platformDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}
