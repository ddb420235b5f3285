// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jaxpr

import "github.com/pkg/errors"

// ErrInvalidTrace is wrapped by all errors reporting a malformed trace.
var ErrInvalidTrace = errors.New("invalid jaxpr trace")
