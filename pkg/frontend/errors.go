// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import "github.com/pkg/errors"

// Error kinds reported by the frontend. Returned errors wrap one of them, so they can be checked
// with errors.Is.
var (
	// ErrArity is reported when an equation has a number of inputs its translator doesn't accept.
	ErrArity = errors.New("wrong number of inputs")

	// ErrAttribute is reported when an attribute is missing or holds a different kind of value.
	ErrAttribute = errors.New("invalid attribute")

	// ErrUnsupported is reported for recognized operations with a configuration that can't be lowered.
	ErrUnsupported = errors.New("unsupported configuration")

	// ErrPlaceMisuse is reported when the InputModel is asked for something its places don't allow.
	ErrPlaceMisuse = errors.New("invalid place operation")

	// ErrUnknownOp is reported for primitives without a registered translator.
	ErrUnknownOp = errors.New("no translator registered")

	// ErrUndefinedValue is reported when an equation uses a value that was not produced before.
	ErrUndefinedValue = errors.New("undefined value")
)
