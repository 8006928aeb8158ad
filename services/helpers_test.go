package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.CheckIn{}, &models.WalletStreak{}, &models.PolicyEntry{}))
	return db
}

func newWallet(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func day(n int) time.Time {
	return time.Date(2026, time.October, n, 0, 0, 0, 0, time.UTC)
}

// fakeReader is an in-memory ledger.
type fakeReader struct {
	mu         sync.Mutex
	balance    uint64
	signatures []ledger.Signature
	err        error
	panicMsg   string
	calls      int
	lastLimit  int
}

func (f *fakeReader) GetBalance(_ context.Context, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.balance, f.err
}

func (f *fakeReader) GetSignatures(_ context.Context, _ string, limit int) ([]ledger.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.signatures) > limit {
		return f.signatures[:limit], nil
	}
	return f.signatures, nil
}

func (f *fakeReader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sigAt(t time.Time) ledger.Signature {
	return ledger.Signature{ID: uuid.NewString(), BlockTime: &t}
}

type testEnv struct {
	db       *gorm.DB
	reader   *fakeReader
	policies *PolicyStore
	streaks  *StreakTracker
	recorder *Recorder
	stats    *StatsAggregator
	svc      *DakaService
	now      time.Time
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zaptest.NewLogger(t)
	env := &testEnv{
		db:     db,
		reader: &fakeReader{},
		now:    day(18).Add(9 * time.Hour),
	}
	env.policies = NewPolicyStore(db, log)
	env.streaks = NewStreakTracker(db)
	env.recorder = NewRecorder(db, env.streaks, log)
	env.stats = NewStatsAggregator(db, env.policies, log)
	if opts.Now == nil {
		opts.Now = func() time.Time { return env.now }
	}
	env.svc = NewDakaService(env.reader, env.policies, env.recorder, log, opts)
	return env
}

func (e *testEnv) setPolicy(t *testing.T, values map[string]string) {
	t.Helper()
	require.NoError(t, e.policies.Set(context.Background(), values))
}
