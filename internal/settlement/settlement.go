package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reward-guard-backend/internal/models"
)

// Receipt is the eventual on-chain outcome of a broadcast transaction.
type Receipt struct {
	Success     bool
	BlockNumber uint64
}

// Submitter is the chain-transaction collaborator. Submit returns as soon as
// the transaction is broadcast; AwaitConfirmation blocks until the chain
// reports an outcome.
type Submitter interface {
	IsAuthorized(ctx context.Context) (bool, error)
	Submit(ctx context.Context, to common.Address, amount decimal.Decimal, memo string) (string, error)
	AwaitConfirmation(ctx context.Context, txHash string) (*Receipt, error)
}

// Notifier receives settlement outcomes for the operator event feed.
type Notifier interface {
	NotifySettlement(event models.SettlementEvent)
}

// Service orchestrates reward distribution after a claim is confirmed. The
// claim is already CLAIMED before Settle runs; nothing here ever unwinds that
// state. A failed settlement is logged and alerted for manual reconciliation,
// which is preferred over re-exposing an acknowledged claim to a second
// settlement attempt.
type Service struct {
	submitter      Submitter
	notifier       Notifier
	logger         *zap.Logger
	confirmTimeout time.Duration
	wg             sync.WaitGroup
}

func NewService(submitter Submitter, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		submitter:      submitter,
		notifier:       notifier,
		logger:         logger,
		confirmTimeout: 5 * time.Minute,
	}
}

// Settle performs the authorization check and broadcasts the distribution
// transaction, returning the tx hash once broadcast. Confirmation is handled
// by a detached continuation whose result is only observed through logs and
// the event feed; no caller ever blocks on it.
func (s *Service) Settle(ctx context.Context, subject string, amount decimal.Decimal, resource string) (string, error) {
	authorized, err := s.submitter.IsAuthorized(ctx)
	if err != nil || !authorized {
		// Operator misconfiguration. Fail fast, no retry; fixing this is an
		// out-of-band action and the claim stays claimed either way.
		s.logger.Error("settlement submitter unauthorized",
			zap.String("subject", subject),
			zap.String("resource", resource),
			zap.Error(err))
		sentry.CaptureMessage(fmt.Sprintf("settlement unauthorized for %s/%s", subject, resource))
		return "", models.WrapError(models.KindSettlementUnauthorized, "settlement submitter not authorized", err)
	}

	txHash, err := s.submitter.Submit(ctx, common.HexToAddress(subject), amount, resource)
	if err != nil {
		s.logger.Error("settlement broadcast failed, manual reconciliation required",
			zap.String("subject", subject),
			zap.String("resource", resource),
			zap.String("amount", amount.String()),
			zap.Error(err))
		sentry.CaptureException(err)
		s.notify(models.SettlementEvent{
			Subject:  subject,
			Resource: resource,
			Amount:   amount,
			Success:  false,
			Detail:   err.Error(),
			At:       time.Now(),
		})
		return "", models.WrapError(models.KindStoreUnavailable, "failed to broadcast settlement", err)
	}

	s.wg.Add(1)
	go s.awaitConfirmation(subject, resource, amount, txHash)

	return txHash, nil
}

func (s *Service) awaitConfirmation(subject, resource string, amount decimal.Decimal, txHash string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.confirmTimeout)
	defer cancel()

	event := models.SettlementEvent{
		Subject:  subject,
		Resource: resource,
		Amount:   amount,
		TxHash:   txHash,
	}

	receipt, err := s.submitter.AwaitConfirmation(ctx, txHash)
	switch {
	case err != nil:
		event.Detail = err.Error()
		s.logger.Error("settlement confirmation failed, manual reconciliation required",
			zap.String("tx_hash", txHash),
			zap.String("subject", subject),
			zap.Error(err))
		sentry.CaptureException(err)
	case !receipt.Success:
		event.BlockNumber = receipt.BlockNumber
		s.logger.Error("settlement transaction reverted, manual reconciliation required",
			zap.String("tx_hash", txHash),
			zap.String("subject", subject),
			zap.Uint64("block", receipt.BlockNumber))
		sentry.CaptureMessage(fmt.Sprintf("settlement reverted: %s", txHash))
	default:
		event.Success = true
		event.BlockNumber = receipt.BlockNumber
		s.logger.Info("settlement confirmed",
			zap.String("tx_hash", txHash),
			zap.String("subject", subject),
			zap.Uint64("block", receipt.BlockNumber))
	}

	event.At = time.Now()
	s.notify(event)
}

func (s *Service) notify(event models.SettlementEvent) {
	if s.notifier != nil {
		s.notifier.NotifySettlement(event)
	}
}

// Wait blocks until all detached confirmations have resolved. Used on
// shutdown so in-flight outcomes still reach the logs.
func (s *Service) Wait() {
	s.wg.Wait()
}
