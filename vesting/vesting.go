// Package vesting computes how much of a deposit has unlocked under a
// periodic payout schedule.
//
// Every function here is pure. The engine, the store backends and the
// off-chain mirror all call into this package, so a route previews and
// settles to exactly the same integer at the same timestamp.
package vesting

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrInvalidSchedule is wrapped by every FieldError.
var ErrInvalidSchedule = errors.New("vesting: invalid schedule")

// FieldError names the schedule field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("vesting: %s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrInvalidSchedule }

// Schedule releases PayoutPerPeriod every PeriodSeconds after Start, for at
// most MaxPeriods periods. Start is a unix timestamp in seconds.
type Schedule struct {
	Start           int64  `json:"start" yaml:"start"`
	PeriodSeconds   uint64 `json:"period_seconds" yaml:"period_seconds"`
	PayoutPerPeriod uint64 `json:"payout_per_period" yaml:"payout_per_period"`
	MaxPeriods      uint64 `json:"max_periods" yaml:"max_periods"`
}

// Validate checks that every schedule term is positive.
func (s Schedule) Validate() error {
	switch {
	case s.PeriodSeconds == 0:
		return &FieldError{Field: "period_seconds", Message: "must be positive"}
	case s.MaxPeriods == 0:
		return &FieldError{Field: "max_periods", Message: "must be positive"}
	case s.PayoutPerPeriod == 0:
		return &FieldError{Field: "payout_per_period", Message: "must be positive"}
	}
	return nil
}

// Total returns PayoutPerPeriod * MaxPeriods. ok is false when the product
// does not fit in 64 bits, in which case the schedule is effectively
// unbounded.
func (s Schedule) Total() (total uint64, ok bool) {
	hi, lo := bits.Mul64(s.PayoutPerPeriod, s.MaxPeriods)
	if hi != 0 {
		return math.MaxUint64, false
	}
	return lo, true
}

// CheckDeposit validates a deposit against the schedule terms.
func (s Schedule) CheckDeposit(deposit uint64) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if deposit == 0 {
		return &FieldError{Field: "deposit_amount", Message: "must be positive"}
	}
	if total, ok := s.Total(); ok && deposit > total {
		return &FieldError{
			Field:   "deposit_amount",
			Message: fmt.Sprintf("%d exceeds schedule total %d", deposit, total),
		}
	}
	return nil
}

// PeriodsElapsed returns the number of whole periods between Start and now,
// uncapped. It is zero before Start and when PeriodSeconds is zero.
func PeriodsElapsed(s Schedule, now int64) uint64 {
	if now <= s.Start || s.PeriodSeconds == 0 {
		return 0
	}
	// now > Start, so the unsigned difference is exact even across the
	// int64 sign boundary.
	elapsed := uint64(now) - uint64(s.Start)
	return elapsed / s.PeriodSeconds
}

// Vested returns the unlocked portion of deposit at now:
// min(PayoutPerPeriod * min(periods, MaxPeriods), deposit).
// An overflowing product saturates to deposit.
func Vested(s Schedule, deposit uint64, now int64) uint64 {
	periods := PeriodsElapsed(s, now)
	if periods == 0 {
		return 0
	}
	periods = min(periods, s.MaxPeriods)

	hi, lo := bits.Mul64(s.PayoutPerPeriod, periods)
	if hi != 0 {
		return deposit
	}
	return min(lo, deposit)
}

// Claimable returns Vested minus what has already been claimed, floored at 0.
func Claimable(s Schedule, deposit, claimed uint64, now int64) uint64 {
	v := Vested(s, deposit, now)
	if v <= claimed {
		return 0
	}
	return v - claimed
}

// NextUnlock returns the first timestamp after now at which Vested grows.
// ok is false once the deposit is fully vested or the schedule can never
// release more.
func NextUnlock(s Schedule, deposit uint64, now int64) (at int64, ok bool) {
	if s.PeriodSeconds == 0 || s.PayoutPerPeriod == 0 {
		return 0, false
	}
	if Vested(s, deposit, now) >= deposit {
		return 0, false
	}
	p := PeriodsElapsed(s, now)
	if p >= s.MaxPeriods {
		return 0, false
	}
	return offset(s.Start, p+1, s.PeriodSeconds)
}

// End returns the timestamp of the last period boundary, after which
// nothing more vests regardless of deposit.
func End(s Schedule) (at int64, ok bool) {
	if s.PeriodSeconds == 0 {
		return 0, false
	}
	return offset(s.Start, s.MaxPeriods, s.PeriodSeconds)
}

// offset computes start + n*period, reporting false if it leaves int64.
func offset(start int64, n, period uint64) (int64, bool) {
	hi, lo := bits.Mul64(n, period)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	d := int64(lo)
	if start > 0 && d > math.MaxInt64-start {
		return 0, false
	}
	return start + d, true
}
