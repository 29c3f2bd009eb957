// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gan

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// paramSnapshot is an ordered copy of parameter values, captured by one
// extragradient step and discarded when the step completes. Copy-out and
// copy-in are keyed by position in the same ordered parameter list, never
// by aliasing live tensors, so a restore is exact regardless of intervening
// updates.
type paramSnapshot struct {
	values []*tensors.Tensor
}

// snapshotParams copies out the current value of every parameter.
func snapshotParams(params []*context.Variable) (*paramSnapshot, error) {
	snap := &paramSnapshot{values: make([]*tensors.Tensor, len(params))}
	for i, v := range params {
		value, err := v.Value()
		if err != nil {
			return nil, errors.WithMessagef(err, "reading parameter %q", v.ScopeAndName())
		}
		clone, err := value.LocalClone()
		if err != nil {
			return nil, errors.WithMessagef(err, "cloning parameter %q", v.ScopeAndName())
		}
		snap.values[i] = clone
	}
	return snap, nil
}

// restoreParams copies the snapshot values back into the parameters. The
// params slice must be the same ordered list the snapshot was taken from.
func restoreParams(params []*context.Variable, snap *paramSnapshot) error {
	if len(params) != len(snap.values) {
		return errors.Errorf("snapshot holds %d values for %d parameters", len(snap.values), len(params))
	}
	for i, v := range params {
		if err := v.SetValue(snap.values[i]); err != nil {
			return errors.WithMessagef(err, "restoring parameter %q", v.ScopeAndName())
		}
	}
	return nil
}
