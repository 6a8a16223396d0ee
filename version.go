package arena

import "github.com/google/uuid"

// Version is the platform release carried by this build. Startup compares it
// against the version recorded in persisted settings and refuses to run when
// the stored state is incompatible.
const Version = "3.7.5"

// Channel names the release track reported to the update endpoint.
const Channel = "oss"

// NewRunID produces the anonymous identifier attached to update check-ins.
// A fresh one is generated per process start.
func NewRunID() string {
	return uuid.NewString()
}
