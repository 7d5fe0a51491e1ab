package health

import "context"

// HealthPinger is probed by PingChecker. Stores answer with a cheap read or a
// driver ping; completion and media providers answer with an authenticated
// GET against their API. HealthPing returns nil when the backend is usable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
