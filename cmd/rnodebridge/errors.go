package main

import (
	"errors"

	"github.com/srg/rnodeble/internal/rnodeerr"
)

// FormatUserError renders err the way a user should see it: a BridgeError's
// classification prefix when available, otherwise the bare message.
func FormatUserError(err error) string {
	var be *rnodeerr.BridgeError
	if errors.As(err, &be) {
		return string(be.Kind) + ": " + be.Err.Error()
	}
	return err.Error()
}
