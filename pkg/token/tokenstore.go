package tokenstore

import (
	"sync"
	"time"
)

// in-memory token revocation store. Entries are kept until the token
// would have expired anyway.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
	now           = time.Now
)

// RevokeToken blocks jti until exp. A zero exp keeps it for a day.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	if exp.IsZero() {
		exp = now().Add(24 * time.Hour)
	}
	mu.Lock()
	defer mu.Unlock()
	revokedTokens[jti] = exp
	pruneLocked()
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	exp, ok := revokedTokens[jti]
	return ok && now().Before(exp)
}

// pruneLocked drops entries whose token has expired; caller holds mu.
func pruneLocked() {
	t := now()
	for k, exp := range revokedTokens {
		if !t.Before(exp) {
			delete(revokedTokens, k)
		}
	}
}
