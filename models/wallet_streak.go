package models

import "time"

// QualifyingStreak is the number of consecutive days that marks a wallet qualified.
const QualifyingStreak = 10

// WalletStreak stores rolling check-in statistics per wallet.
type WalletStreak struct {
	Wallet          string    `gorm:"primaryKey;size:64" json:"wallet"`
	LastCheckinDate time.Time `gorm:"type:date;not null" json:"last_checkin_date"`
	ConsecutiveDays int       `gorm:"not null;default:1" json:"consecutive_days"`
	TotalCheckins   int       `gorm:"not null;default:1" json:"total_checkins"`
	Qualified       bool      `gorm:"index;not null;default:false" json:"qualified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (WalletStreak) TableName() string { return "wallet_streaks" }
