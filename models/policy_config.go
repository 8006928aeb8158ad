package models

import "time"

// Recognized policy_config keys.
const (
	PolicyMinWalletAgeDays = "min_wallet_age_days"
	PolicyMinSolBalance    = "min_sol_balance"
	PolicyMinTxCount       = "min_tx_count"
	PolicyTestingMode      = "is_testing_mode"
	PolicyTargetCount      = "target_count"
)

// PolicyKeys lists every key the policy store understands.
var PolicyKeys = []string{
	PolicyMinWalletAgeDays,
	PolicyMinSolBalance,
	PolicyMinTxCount,
	PolicyTestingMode,
	PolicyTargetCount,
}

// PolicyEntry is one operator-administered key/value row.
type PolicyEntry struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PolicyEntry) TableName() string { return "policy_config" }
