package engine

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies timestamps for orders and trades. Injected so tests can
// run against a deterministic time source.
type Clock interface {
	NowMillis() uint64
}

// IDSource mints order identifiers. Injected for the same reason.
type IDSource interface {
	NewID() uuid.UUID
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// RandomIDs mints random (v4) uuids.
type RandomIDs struct{}

func (RandomIDs) NewID() uuid.UUID {
	return uuid.New()
}
