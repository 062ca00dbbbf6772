package storage

import (
	"fmt"
)

// Backend names accepted by the STORAGE_BACKEND setting.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// ValidateBackend rejects unknown backend names before any client is dialed.
// The adapter itself is constructed in cmd/app, where the concrete
// implementations are wired; a deployment runs exactly one backend, never a
// dual-write.
func ValidateBackend(name string) error {
	switch name {
	case BackendFile, BackendRedis:
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)", name, BackendFile, BackendRedis)
	}
}
