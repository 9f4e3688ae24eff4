package payment

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const referencePrefix = "gym_"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewReference returns "gym_" followed by a lowercase ULID: a millisecond
// timestamp plus random suffix, monotonic within the process.
func NewReference() string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	return referencePrefix + strings.ToLower(id.String())
}
