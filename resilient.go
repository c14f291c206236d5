package nexthop

import (
	"math"
	"strconv"
	"time"
)

// TimerScale converts the seconds a user types into the clock_t ticks the
// kernel expects for resilient group timers.
const TimerScale = 100

// DefaultUserHZ is the tick rate the kernel reports clock_t values in.
const DefaultUserHZ = 100

// Ticks is a clock_t quantity as carried by the resilient group and
// bucket attributes.
type Ticks uint64

// TimerFromSeconds scales a timer given in seconds to ticks. Timers are
// carried as u32, so values whose scaled form does not fit are refused.
func TimerFromSeconds(seconds uint64) (Ticks, error) {
	if seconds > math.MaxUint32/TimerScale {
		return 0, &UsageError{Arg: strconv.FormatUint(seconds, 10), Reason: "timer value out of range"}
	}
	return Ticks(seconds * TimerScale), nil
}

// Duration converts t to wall time using the kernel tick rate hz.
func (t Ticks) Duration(hz uint32) time.Duration {
	if hz == 0 {
		hz = DefaultUserHZ
	}
	whole := uint64(t) / uint64(hz)
	frac := uint64(t) % uint64(hz)
	return time.Duration(whole)*time.Second + time.Duration(frac)*time.Second/time.Duration(hz)
}

// Seconds renders t the way timers are displayed: seconds in %g form.
func (t Ticks) Seconds(hz uint32) string {
	return strconv.FormatFloat(t.Duration(hz).Seconds(), 'g', -1, 64)
}

// ResilientConfig carries the arguments of a resilient group. Unset
// fields are left to the kernel default and are not put on the wire.
type ResilientConfig struct {
	Buckets         *uint16
	IdleTimer       *Ticks
	UnbalancedTimer *Ticks

	// UnbalancedTime is reported by the kernel only: how long the group
	// has been unbalanced.
	UnbalancedTime *Ticks
}

// IsEmpty reports whether no argument is set.
func (c ResilientConfig) IsEmpty() bool {
	return c.Buckets == nil && c.IdleTimer == nil && c.UnbalancedTimer == nil && c.UnbalancedTime == nil
}

// Bucket is one slot of a resilient group's bucket table. Buckets are
// materialised by the kernel and only ever read.
type Bucket struct {
	GroupID   ID
	Index     uint16
	IdleTime  Ticks
	NexthopID ID
	Flags     Flags

	// HasIdleTime distinguishes a zero idle time from an absent one.
	HasIdleTime bool
	// Deleted is set on decoded RTM_DELNEXTHOPBUCKET notifications.
	Deleted bool
}
