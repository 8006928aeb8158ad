package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cppla/daka/ledger"
)

func TestEvaluate(t *testing.T) {
	wallet := "11111111111111111111111111111111"
	now := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(-30 * 24 * time.Hour)

	strict := Policy{
		MinWalletAgeDays: 30,
		MinSolBalance:    decimal.RequireFromString("0.01"),
		MinTxCount:       2,
		TargetCount:      10,
	}
	old := []ledger.Signature{sigAt(now.Add(-time.Hour)), sigAt(deadline.Add(-time.Hour))}

	cases := []struct {
		name    string
		wallet  string
		policy  Policy
		balance uint64
		sigs    []ledger.Signature
		want    Verdict
	}{
		{"malformed address", "not-a-wallet", strict, 10_000_000, old, InvalidAddress},
		{"malformed address in testing mode", "bad", Policy{TestingMode: true}, 0, nil, InvalidAddress},
		{"testing mode skips everything", wallet, Policy{TestingMode: true, MinSolBalance: decimal.NewFromInt(5), MinTxCount: 9, MinWalletAgeDays: 99}, 0, nil, Eligible},
		{"balance exactly at threshold", wallet, strict, 10_000_000, old, Eligible},
		{"balance just under threshold", wallet, strict, 9_999_900, old, InsufficientBalance},
		{"balance checked before activity", wallet, strict, 0, nil, InsufficientBalance},
		{"too few transactions", wallet, strict, 10_000_000, old[:1], InsufficientActivity},
		{"oldest exactly at deadline", wallet, strict, 10_000_000, []ledger.Signature{sigAt(now), sigAt(deadline)}, Eligible},
		{"oldest one second after deadline", wallet, strict, 10_000_000, []ledger.Signature{sigAt(now), sigAt(deadline.Add(time.Second))}, WalletTooYoung},
		{"oldest without timestamp", wallet, strict, 10_000_000, []ledger.Signature{sigAt(now), {ID: "x"}}, Eligible},
		{"age check off", wallet, Policy{MinSolBalance: decimal.Zero}, 0, []ledger.Signature{sigAt(now)}, Eligible},
		{"no history with zero minimums", wallet, Policy{MinSolBalance: decimal.Zero, MinWalletAgeDays: 30}, 0, nil, Eligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.wallet, tc.policy, tc.balance, tc.sigs, now))
		})
	}
}

func TestEvaluateFractionalLamportThreshold(t *testing.T) {
	p := Policy{MinSolBalance: decimal.RequireFromString("0.0000000015")}
	wallet := "11111111111111111111111111111111"
	assert.Equal(t, InsufficientBalance, Evaluate(wallet, p, 1, nil, time.Now()))
	assert.Equal(t, Eligible, Evaluate(wallet, p, 2, nil, time.Now()))
}

func TestVerdictMessage(t *testing.T) {
	p := DefaultPolicy()
	p.MinWalletAgeDays = 7

	assert.Equal(t, "Invalid wallet address", VerdictMessage(InvalidAddress, p))
	assert.Equal(t, "SOL balance < 0.01", VerdictMessage(InsufficientBalance, p))
	assert.Equal(t, "Wallet not active enough", VerdictMessage(InsufficientActivity, p))
	assert.Equal(t, "Wallet must be > 7 days old", VerdictMessage(WalletTooYoung, p))
	assert.Equal(t, "Recorded", VerdictMessage(Eligible, p))
}
