package models

import "time"

// CheckIn is one daka per wallet per UTC day. The unique index on
// (wallet, date) is what rejects a second check-in on the same day.
type CheckIn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Wallet    string    `gorm:"index:idx_checkin_wallet_date,unique;size:64;not null" json:"wallet"`
	Date      time.Time `gorm:"index;index:idx_checkin_wallet_date,unique;type:date;not null" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

func (CheckIn) TableName() string { return "checkins" }
