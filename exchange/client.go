// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// maxResponseSize bounds how much of an identity API response is read.
const maxResponseSize = 1 << 20

// Exchanger exchanges a platform token for a session credential. An
// Exchanger makes exactly one attempt per call: it never retries and
// applies no timeout beyond the ctx it's given.
type Exchanger interface {
	Exchange(ctx context.Context, platformToken, target string) (*Credential, error)
}

// Client is the Exchanger for the identity API's access token endpoint.
type Client struct {
	conf   *Config
	client *http.Client
	logger hclog.Logger
}

// ensure that Client implements the Exchanger interface
var _ Exchanger = (*Client)(nil)

// NewClient creates a new identity API client.
//
// Supported options: WithLogger, WithHTTPClient
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "exchange.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}
	opts := getClientOpts(opt...)
	hc := opts.withHTTPClient
	if hc == nil {
		var err error
		if hc, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	return &Client{
		conf:   c,
		client: hc,
		logger: opts.withLogger,
	}, nil
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	AccessToken string `json:"access_token"`
	Connection  string `json:"connection"`
	Scope       string `json:"scope"`
	Audience    string `json:"audience,omitempty"`
}

// errorResponse accepts both the OAuth error shape and the identity API's
// legacy code/description shape.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             string `json:"code"`
	Description      string `json:"description"`
}

// Exchange posts the platformToken to the identity API and returns the
// session credential issued for the target connection. A refusal by the
// identity API is returned as an *Error.
func (c *Client) Exchange(ctx context.Context, platformToken, target string) (*Credential, error) {
	const op = "exchange.(Client).Exchange"
	if platformToken == "" {
		return nil, fmt.Errorf("%s: platform token is empty: %w", op, ErrInvalidParameter)
	}
	if target == "" {
		return nil, fmt.Errorf("%s: target is empty: %w", op, ErrInvalidParameter)
	}
	body, err := json.Marshal(exchangeRequest{
		ClientID:    c.conf.ClientID,
		AccessToken: platformToken,
		Connection:  target,
		Scope:       c.conf.scope(),
		Audience:    c.conf.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.tokenURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("exchanging platform token", "connection", target, "url", c.conf.tokenURL())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, err, ErrRequestFailed)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %s: %w", op, err, ErrRequestFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			e.Code, e.Description = er.Error, er.ErrorDescription
			if e.Code == "" {
				e.Code = er.Code
			}
			if e.Description == "" {
				e.Description = er.Description
			}
		}
		c.logger.Warn("identity api rejected exchange", "connection", target, "status", resp.StatusCode, "code", e.Code)
		return nil, e
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%s: unable to decode credential: %s: %w", op, err, ErrInvalidResponse)
	}
	if cred.AccessToken == "" && cred.IDToken == "" {
		return nil, fmt.Errorf("%s: credential has neither access_token nor id_token: %w", op, ErrInvalidResponse)
	}
	cred.ReceivedAt = time.Now()
	return &cred, nil
}

type clientOptions struct {
	withLogger     hclog.Logger
	withHTTPClient *http.Client
}

func clientDefaults() clientOptions {
	return clientOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}
