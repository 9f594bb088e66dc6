// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jllopis/crewsum/pkg/errors"
)

// ClassifyError maps a provider failure onto the crewsum taxonomy.
// status is the HTTP status reported by the SDK, or 0 when the request never
// produced a response.
func ClassifyError(provider string, status int, err error) *errors.Error {
	if err == nil {
		return nil
	}
	if e := errors.As(err); e != nil {
		return e
	}

	var e *errors.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		e = errors.New(errors.CodeTimeout, provider+" call exceeded deadline", err)
	case stderrors.Is(err, context.Canceled):
		e = errors.New(errors.CodeCanceled, provider+" call canceled", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = errors.New(errors.CodeAuthentication, provider+" rejected the API key", err)
	case status == http.StatusTooManyRequests:
		e = errors.New(errors.CodeRateLimit, provider+" rate limit exceeded", err).
			WithRecoverable(true)
	case status != 0:
		e = errors.New(errors.CodeProvider, fmt.Sprintf("%s returned status %d", provider, status), err)
	case isNetworkError(err):
		e = errors.New(errors.CodeNetwork, provider+" transport failure", err).
			WithRecoverable(true)
	default:
		e = errors.New(errors.CodeProvider, provider+" call failed", err)
	}
	if status != 0 {
		e.WithContext("status", status)
	}
	return e.WithContext("provider", provider)
}

// EmptyResponseError reports a response with no usable content.
func EmptyResponseError(provider string) *errors.Error {
	return errors.New(errors.CodeProvider, provider+" returned no content", nil).
		WithContext("provider", provider)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return stderrors.As(err, &dnsErr)
}
