package services

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cppla/daka/ledger"
)

// Verdict is the outcome of an eligibility evaluation.
type Verdict int

const (
	Eligible Verdict = iota
	InvalidAddress
	InsufficientBalance
	InsufficientActivity
	WalletTooYoung
)

func (v Verdict) String() string {
	switch v {
	case Eligible:
		return "eligible"
	case InvalidAddress:
		return "invalid_address"
	case InsufficientBalance:
		return "insufficient_balance"
	case InsufficientActivity:
		return "insufficient_activity"
	case WalletTooYoung:
		return "wallet_too_young"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Evaluate applies policy to the wallet's ledger signals. signatures are
// newest first, so the last one is the oldest the window reached; a window
// that stops short of the wallet's first transaction makes the wallet look
// younger, never older.
func Evaluate(wallet string, policy Policy, balance uint64, signatures []ledger.Signature, now time.Time) Verdict {
	if !ledger.ValidAddress(wallet) {
		return InvalidAddress
	}
	if policy.TestingMode {
		return Eligible
	}

	if decimal.NewFromBigInt(new(big.Int).SetUint64(balance), 0).LessThan(policy.MinBalanceLamports()) {
		return InsufficientBalance
	}

	if len(signatures) < policy.MinTxCount {
		return InsufficientActivity
	}

	if policy.MinWalletAgeDays > 0 && len(signatures) > 0 {
		oldest := signatures[len(signatures)-1]
		// no timestamp: age unknown, not a rejection
		if oldest.BlockTime != nil {
			deadline := now.Add(-time.Duration(policy.MinWalletAgeDays) * 24 * time.Hour)
			if oldest.BlockTime.After(deadline) {
				return WalletTooYoung
			}
		}
	}

	return Eligible
}

// VerdictMessage renders a rejection for the caller.
func VerdictMessage(v Verdict, policy Policy) string {
	switch v {
	case Eligible:
		return MsgRecorded
	case InvalidAddress:
		return MsgInvalidAddress
	case InsufficientBalance:
		return "SOL balance < " + policy.MinSolBalance.String()
	case InsufficientActivity:
		return MsgNotActive
	case WalletTooYoung:
		return fmt.Sprintf("Wallet must be > %d days old", policy.MinWalletAgeDays)
	default:
		return MsgInternalError
	}
}
