package cooldown

import (
	"fmt"
	"math"
	"time"
)

// Unit is the time unit of an amount-based Duration.
type Unit string

const (
	Seconds Unit = "s"
	Minutes Unit = "m"
	Hours   Unit = "h"
	Days    Unit = "d"
)

var unitSeconds = map[Unit]int64{
	Seconds: 1,
	Minutes: 60,
	Hours:   3600,
	Days:    86400,
}

// Duration is a cooldown length: either a literal number of milliseconds or
// an amount of a Unit. Exactly one form is set.
type Duration struct {
	Millis int64
	Amount int64
	Unit   Unit
}

// Millis returns a literal millisecond Duration.
func Millis(ms int64) Duration { return Duration{Millis: ms} }

// Every returns an amount-based Duration such as Every(3, Hours).
func Every(amount int64, unit Unit) Duration { return Duration{Amount: amount, Unit: unit} }

func (d Duration) literal() bool { return d.Unit == "" && d.Amount == 0 }

// Normalize validates d and converts it to a time.Duration. Pairs resolve
// to whole seconds through the s/m/h/d table.
func (d Duration) Normalize() (time.Duration, error) {
	if d.literal() {
		if d.Millis <= 0 {
			return 0, invalid("duration", "literal duration must be a positive number of milliseconds, got %d", d.Millis)
		}
		if d.Millis > math.MaxInt64/int64(time.Millisecond) {
			return 0, invalid("duration", "literal duration of %dms is too long", d.Millis)
		}
		return time.Duration(d.Millis) * time.Millisecond, nil
	}
	if d.Millis != 0 {
		return 0, invalid("duration", "set either milliseconds or an amount with a unit, not both")
	}
	if d.Amount <= 0 {
		return 0, invalid("duration", "amount must be a whole number greater than 0, got %d", d.Amount)
	}
	perUnit, ok := unitSeconds[d.Unit]
	if !ok {
		return 0, invalid("duration", "unknown duration unit %q, use one of s, m, h, d", string(d.Unit))
	}
	if d.Amount > math.MaxInt64/int64(time.Second)/perUnit {
		return 0, invalid("duration", "duration of %d%s is too long", d.Amount, d.Unit)
	}
	return time.Duration(d.Amount*perUnit) * time.Second, nil
}

func (d Duration) String() string {
	if d.literal() {
		return fmt.Sprintf("%dms", d.Millis)
	}
	return fmt.Sprintf("%d%s", d.Amount, d.Unit)
}
