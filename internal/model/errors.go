package model

import "errors"

// Ledger failures. Each aborts the whole call it occurs in.
var (
	ErrNotInitialized        = errors.New("not initialized")
	ErrAlreadyInitialized    = errors.New("already initialized")
	ErrBalancesNotReinstated = errors.New("balances not reinstated")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrBadCaller             = errors.New("bad caller")
	ErrRestrictedTransfer    = errors.New("restricted transfer")
	ErrArrayLengthMismatch   = errors.New("array length mismatch")
	ErrLimitExceeded         = errors.New("limit exceeded")
	ErrNullAmount            = errors.New("null amount")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrReentry               = errors.New("reentry")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrNotBound              = errors.New("token not bound")
	ErrUnknownImplementation = errors.New("unknown implementation")
	ErrUnsupported           = errors.New("unsupported operation")
)
