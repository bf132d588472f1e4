//go:build cgo

package dolt

import (
	"os"
	"sync"
)

// federationEnvMutex serializes access to the process-wide DOLT_REMOTE_PASSWORD
// env var around push/pull calls, since the embedded Dolt engine reads remote
// auth from the environment rather than accepting it as a CALL argument.
var federationEnvMutex sync.Mutex

// setFederationCredentials sets DOLT_REMOTE_PASSWORD for the duration of a single
// push/pull call and returns a cleanup func that restores the previous value.
// Callers must hold federationEnvMutex for the full set-call-cleanup window.
func setFederationCredentials(_, password string) func() {
	prev, had := os.LookupEnv("DOLT_REMOTE_PASSWORD")
	_ = os.Setenv("DOLT_REMOTE_PASSWORD", password)
	return func() {
		if had {
			_ = os.Setenv("DOLT_REMOTE_PASSWORD", prev)
		} else {
			_ = os.Unsetenv("DOLT_REMOTE_PASSWORD")
		}
	}
}
