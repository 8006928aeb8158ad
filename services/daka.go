package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/metrics"
)

// Messages returned to the caller of a check-in submission.
const (
	MsgInvalidAddress   = "Invalid wallet address"
	MsgInvalidSignature = "Invalid wallet signature"
	MsgNotActive        = "Wallet not active enough"
	MsgAlreadyToday     = "Already daka today"
	MsgDatabaseError    = "Database Error"
	MsgInternalError    = "Internal Error"
	MsgRecorded         = "Recorded"
)

// DefaultSignatureWindow bounds the signature history fetched per evaluation.
const DefaultSignatureWindow = 100

// Outcome classifies a submission result.
type Outcome string

const (
	OutcomeRecorded         Outcome = "recorded"
	OutcomeInvalidAddress   Outcome = "invalid_address"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeRejected         Outcome = "rejected"
	OutcomeAlreadyToday     Outcome = "already_today"
	OutcomeDatabaseError    Outcome = "database_error"
	OutcomeInternalError    Outcome = "internal_error"
)

// Result is what a check-in submission reports.
type Result struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Outcome Outcome `json:"-"`
}

// SubmitRequest carries the wallet and, when required, a signed challenge.
type SubmitRequest struct {
	Wallet    string
	Signature string
}

// Options tune a DakaService.
type Options struct {
	SignatureWindow  int
	RequireSignature bool
	Now              func() time.Time
}

// DakaService runs the full check-in flow: validate, evaluate, record.
type DakaService struct {
	reader   ledger.Reader
	policies *PolicyStore
	recorder *Recorder
	log      *zap.Logger

	signatureWindow  int
	requireSignature bool
	now              func() time.Time
}

// NewDakaService wires the check-in flow.
func NewDakaService(reader ledger.Reader, policies *PolicyStore, recorder *Recorder, log *zap.Logger, opts Options) *DakaService {
	if opts.SignatureWindow <= 0 {
		opts.SignatureWindow = DefaultSignatureWindow
	}
	if opts.SignatureWindow > ledger.MaxSignatureWindow {
		opts.SignatureWindow = ledger.MaxSignatureWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DakaService{
		reader:           reader,
		policies:         policies,
		recorder:         recorder,
		log:              log,
		signatureWindow:  opts.SignatureWindow,
		requireSignature: opts.RequireSignature,
		now:              opts.Now,
	}
}

// ChallengeMessage is the text a wallet signs when signatures are required.
func ChallengeMessage(wallet string, day time.Time) []byte {
	return []byte(fmt.Sprintf("daka:%s:%s", wallet, UTCDay(day).Format("2006-01-02")))
}

// Submit performs one check-in attempt. It never returns an error: every
// failure is folded into the Result.
func (s *DakaService) Submit(ctx context.Context, req SubmitRequest) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("daka submit panic", zap.String("wallet", req.Wallet), zap.Any("panic", r), zap.Stack("stack"))
			res = Result{Message: MsgInternalError, Outcome: OutcomeInternalError}
		}
		metrics.IncSubmission(string(res.Outcome))
	}()

	if !ledger.ValidAddress(req.Wallet) {
		return Result{Message: MsgInvalidAddress, Outcome: OutcomeInvalidAddress}
	}

	now := s.now().UTC()
	today := UTCDay(now)

	if s.requireSignature && !ledger.VerifyMessage(req.Wallet, ChallengeMessage(req.Wallet, today), req.Signature) {
		return Result{Message: MsgInvalidSignature, Outcome: OutcomeInvalidSignature}
	}

	policy, err := s.policies.Load(ctx)
	if err != nil {
		s.log.Error("load policy failed", zap.String("wallet", req.Wallet), zap.Error(err))
		return Result{Message: MsgDatabaseError, Outcome: OutcomeDatabaseError}
	}

	var (
		balance    uint64
		signatures []ledger.Signature
	)
	if !policy.TestingMode {
		balance, signatures, err = s.fetchLedger(ctx, req.Wallet)
		if err != nil {
			s.log.Error("ledger read failed", zap.String("wallet", req.Wallet), zap.Error(err))
			return Result{Message: MsgInternalError, Outcome: OutcomeInternalError}
		}
	}

	if verdict := Evaluate(req.Wallet, policy, balance, signatures, now); verdict != Eligible {
		s.log.Info("daka rejected", zap.String("wallet", req.Wallet), zap.Stringer("verdict", verdict))
		return Result{Message: VerdictMessage(verdict, policy), Outcome: OutcomeRejected}
	}

	switch s.recorder.Record(ctx, req.Wallet, today) {
	case Recorded:
		s.log.Info("daka recorded", zap.String("wallet", req.Wallet), zap.Time("date", today))
		return Result{Success: true, Message: MsgRecorded, Outcome: OutcomeRecorded}
	case AlreadyRecordedToday:
		if policy.TestingMode {
			// testing mode allows repeats; the stored row stays unique
			return Result{Success: true, Message: MsgRecorded, Outcome: OutcomeRecorded}
		}
		return Result{Message: MsgAlreadyToday, Outcome: OutcomeAlreadyToday}
	default:
		return Result{Message: MsgDatabaseError, Outcome: OutcomeDatabaseError}
	}
}

// fetchLedger reads balance and history concurrently and waits for both.
func (s *DakaService) fetchLedger(ctx context.Context, wallet string) (uint64, []ledger.Signature, error) {
	var (
		balance    uint64
		signatures []ledger.Signature
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered(func() error {
		b, err := s.reader.GetBalance(gctx, wallet)
		balance = b
		return err
	}))
	g.Go(recovered(func() error {
		sigs, err := s.reader.GetSignatures(gctx, wallet, s.signatureWindow)
		signatures = sigs
		return err
	}))
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	return balance, signatures, nil
}

// recovered turns a panic in a fan-out goroutine into an error, since
// Submit's own recover cannot see it.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("ledger call panicked: %v", r)
			}
		}()
		return fn()
	}
}
