package ids

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrNotBooted is the panic value raised when an id is requested from an
// Allocator that was never given a boot time.
var ErrNotBooted = errors.New("id allocator used before boot timestamp was set")

// Allocator hands out ids of the form <base36 counter>-<base36 boot millis>.
// The counter starts at 1 and is never reused within a boot, and the boot
// timestamp salts ids across restarts. Two boots in the same millisecond can
// collide; that is accepted.
type Allocator struct {
	boot    int64
	counter atomic.Uint64
}

// NewAllocator creates an allocator salted with the given boot time.
func NewAllocator(boot time.Time) *Allocator {
	a := &Allocator{}
	if !boot.IsZero() {
		a.boot = boot.UnixMilli()
	}
	return a
}

// Generate returns the next id. It panics with ErrNotBooted if the allocator
// has no boot timestamp; there is no safe id to hand out in that state.
func (a *Allocator) Generate() string {
	if a == nil || a.boot <= 0 {
		panic(ErrNotBooted)
	}
	n := a.counter.Add(1)
	return strconv.FormatUint(n, 36) + "-" + strconv.FormatInt(a.boot, 36)
}

// Boot returns the boot timestamp the allocator was created with.
func (a *Allocator) Boot() time.Time {
	return time.UnixMilli(a.boot)
}
