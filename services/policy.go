package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/models"
)

// DefaultTargetCount is the display target used when policy_config has none.
const DefaultTargetCount = 10

var errUnknownPolicyKey = errors.New("unknown policy key")

// Policy is the operator-configured eligibility policy.
type Policy struct {
	MinWalletAgeDays int             `json:"min_wallet_age_days"`
	MinSolBalance    decimal.Decimal `json:"min_sol_balance"`
	MinTxCount       int             `json:"min_tx_count"`
	TestingMode      bool            `json:"testing_mode"`
	TargetCount      int             `json:"target_count"`
}

// DefaultPolicy is what an empty policy_config table means.
func DefaultPolicy() Policy {
	return Policy{
		MinSolBalance: decimal.RequireFromString("0.01"),
		TargetCount:   DefaultTargetCount,
	}
}

// MinBalanceLamports converts the SOL threshold to lamports. It may be fractional.
func (p Policy) MinBalanceLamports() decimal.Decimal {
	return p.MinSolBalance.Mul(decimal.NewFromInt(ledger.LamportsPerSol))
}

// ParsePolicy builds a Policy from raw key/value rows. Missing keys keep
// their defaults; values that fail to parse are returned in invalid.
func ParsePolicy(values map[string]string) (p Policy, invalid []string) {
	p = DefaultPolicy()
	for key, raw := range values {
		if err := applyPolicyValue(&p, key, raw); err != nil && !errors.Is(err, errUnknownPolicyKey) {
			invalid = append(invalid, key)
		}
	}
	return p, invalid
}

// ValidatePolicyValue reports whether raw is acceptable for key.
func ValidatePolicyValue(key, raw string) error {
	p := DefaultPolicy()
	return applyPolicyValue(&p, key, raw)
}

func applyPolicyValue(p *Policy, key, raw string) error {
	switch key {
	case models.PolicyMinWalletAgeDays:
		n, err := parseNonNegative(raw)
		if err != nil {
			return err
		}
		p.MinWalletAgeDays = n
	case models.PolicyMinSolBalance:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", key)
		}
		p.MinSolBalance = d
	case models.PolicyMinTxCount:
		n, err := parseNonNegative(raw)
		if err != nil {
			return err
		}
		p.MinTxCount = n
	case models.PolicyTestingMode:
		// only the literal "true" enables testing mode
		p.TestingMode = raw == "true"
	case models.PolicyTargetCount:
		n, err := parseNonNegative(raw)
		if err != nil {
			return err
		}
		p.TargetCount = n
	default:
		return fmt.Errorf("%w: %s", errUnknownPolicyKey, key)
	}
	return nil
}

func parseNonNegative(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("value %d must not be negative", n)
	}
	return n, nil
}

// PolicyStore reads and writes the policy_config table. Nothing is cached:
// every Load hits the database so operator edits apply to the next request.
type PolicyStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewPolicyStore creates a policy store on db.
func NewPolicyStore(db *gorm.DB, log *zap.Logger) *PolicyStore {
	return &PolicyStore{db: db, log: log}
}

// Values returns the raw key/value rows.
func (s *PolicyStore) Values(ctx context.Context) (map[string]string, error) {
	var rows []models.PolicyEntry
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load policy_config: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Load reads the current policy.
func (s *PolicyStore) Load(ctx context.Context) (Policy, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return Policy{}, err
	}
	p, invalid := ParsePolicy(values)
	if len(invalid) > 0 {
		s.log.Warn("ignoring unparsable policy values", zap.Strings("keys", invalid))
	}
	return p, nil
}

// Set validates and upserts values in one transaction.
func (s *PolicyStore) Set(ctx context.Context, values map[string]string) error {
	rows := make([]models.PolicyEntry, 0, len(values))
	for key, raw := range values {
		if err := ValidatePolicyValue(key, raw); err != nil {
			return fmt.Errorf("policy %s=%q: %w", key, raw, err)
		}
		rows = append(rows, models.PolicyEntry{Key: key, Value: raw})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

// Seed inserts values for keys that are not present yet, leaving operator edits untouched.
func (s *PolicyStore) Seed(ctx context.Context, values map[string]string) error {
	rows := make([]models.PolicyEntry, 0, len(values))
	for key, raw := range values {
		rows = append(rows, models.PolicyEntry{Key: key, Value: raw})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// IsUnknownPolicyKey reports whether err came from an unrecognized key.
func IsUnknownPolicyKey(err error) bool {
	return errors.Is(err, errUnknownPolicyKey)
}
