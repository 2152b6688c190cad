package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for money movement. All of these are recoverable and
// local to the request; none of them crash the process.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrNoVerifiedBeneficiary  = errors.New("no verified beneficiary on record")
	ErrNoFundsToTransfer      = errors.New("no funds to transfer")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrTransferNotFound       = errors.New("fund transfer not found")
)

// VerificationFailedError reports that the payment gateway could not
// confirm a transaction (unknown, unsuccessful, or a network failure).
// No wallet mutation happens when this is returned.
type VerificationFailedError struct {
	Reference string
	Reason    string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("gateway verification failed for %s: %s", e.Reference, e.Reason)
}

// AmountMismatchError reports that the caller-claimed amount does not
// match what the gateway confirmed.
type AmountMismatchError struct {
	Reference string
	Claimed   int64
	Confirmed int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch for %s: claimed %d, gateway confirmed %d",
		e.Reference, e.Claimed, e.Confirmed)
}
