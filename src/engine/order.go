package engine

import (
	"math/bits"
)

// Principal is an opaque, already-authenticated user identifier. The engine
// only ever compares principals for equality.
type Principal string

type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	}
	return "UNKNOWN"
}

// ParseSide maps the wire representation to a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	}
	return 0, ErrInvalidOrderSide
}

// Order is an open resting order. Amounts and prices are unsigned integers in
// the smallest unit of the respective asset; all arithmetic on them is
// overflow-checked.
type Order struct {
	ID              uint64
	Owner           Principal
	Side            Side
	Price           uint64
	OriginalAmount  uint64
	RemainingAmount uint64
	CreatedAt       int64 // unix timestamp in milliseconds
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrCalculationFailure
	}
	return lo, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrCalculationFailure
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrCalculationFailure
	}
	return diff, nil
}
