package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/store"
)

type settlementRepoStub struct {
	store.Repository

	tx  *domain.PaymentTransaction
	sub *domain.PaymentSubscription

	completeReturns bool
	completeErr     error
	completeCalled  bool

	markUnfulfilledCalled bool
	markUnfulfilledReason string

	confirmBillingCalled bool
	confirmedNextBilling time.Time

	donation          *domain.Donation
	completeDonateErr error

	createdDonations []*domain.Donation
	createDonateErr  error

	registrationErr        error
	registrationCalled     bool
	registrationAmountPaid decimal.Decimal

	recurring    *domain.RecurringDonation
	recurringErr error

	incrementCalls   int
	incrementAmounts []decimal.Decimal
	incrementErr     error

	user     *domain.User
	userErr  error
	applied  *domain.MembershipUpdate
	applyErr error
}

func (s *settlementRepoStub) FindPaymentTransactionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	if s.tx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.tx, nil
}

func (s *settlementRepoStub) CompletePaymentTransaction(ctx context.Context, id uuid.UUID, transactionNumber string) (bool, error) {
	s.completeCalled = true
	return s.completeReturns, s.completeErr
}

func (s *settlementRepoStub) MarkTransactionUnfulfilled(ctx context.Context, id uuid.UUID, reason string) error {
	s.markUnfulfilledCalled = true
	s.markUnfulfilledReason = reason
	return nil
}

func (s *settlementRepoStub) FindPaymentSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSubscription, error) {
	if s.sub == nil {
		return nil, store.ErrSubscriptionNotFound
	}
	return s.sub, nil
}

func (s *settlementRepoStub) ConfirmSubscriptionBilling(ctx context.Context, id uuid.UUID, transactionNumber string, nextBillingDate time.Time) error {
	s.confirmBillingCalled = true
	s.confirmedNextBilling = nextBillingDate
	return nil
}

func (s *settlementRepoStub) CompleteDonation(ctx context.Context, donationID uuid.UUID, transactionNumber string) (*domain.Donation, error) {
	if s.completeDonateErr != nil {
		return nil, s.completeDonateErr
	}
	return s.donation, nil
}

func (s *settlementRepoStub) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	if s.createDonateErr != nil {
		return s.createDonateErr
	}
	s.createdDonations = append(s.createdDonations, donation)
	return nil
}

func (s *settlementRepoStub) CompleteEventRegistration(ctx context.Context, registrationID uuid.UUID, transactionNumber string, amountPaid decimal.Decimal) error {
	s.registrationCalled = true
	s.registrationAmountPaid = amountPaid
	return s.registrationErr
}

func (s *settlementRepoStub) ActivateRecurringDonation(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error) {
	if s.recurringErr != nil {
		return nil, s.recurringErr
	}
	return s.recurring, nil
}

func (s *settlementRepoStub) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.user, nil
}

func (s *settlementRepoStub) ApplyMembership(ctx context.Context, update domain.MembershipUpdate) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = &update
	return nil
}

func (s *settlementRepoStub) IncrementCauseRaisedAmount(ctx context.Context, causeID uuid.UUID, amount decimal.Decimal) error {
	s.incrementCalls++
	s.incrementAmounts = append(s.incrementAmounts, amount)
	return s.incrementErr
}

type recordingPublisher struct {
	published  int
	routingKey string
	err        error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.published++
	p.routingKey = routingKey
	return p.err
}

func (p *recordingPublisher) Close() {}

func newTestEngine(repo *settlementRepoStub, producer *recordingPublisher) *SettlementEngine {
	orchestrator := NewOrchestrator(nil, decimal.NewFromInt(135), decimal.NewFromFloat(0.03))
	engine := NewSettlementEngine(repo, orchestrator, producer)
	engine.now = func() time.Time {
		return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return engine
}

func pendingTransaction(orderType domain.OrderType, amount int64) *domain.PaymentTransaction {
	refID := uuid.New()
	userID := uuid.New()
	return &domain.PaymentTransaction{
		ID:          uuid.New(),
		OrderType:   orderType,
		ReferenceID: &refID,
		UserID:      &userID,
		Amount:      decimal.NewFromInt(amount),
		Currency:    "JMD",
		Status:      domain.TransactionStatusPending,
	}
}

func TestSettleTransaction_DonationCompletesAndIncrementsCauseOnce(t *testing.T) {
	causeID := uuid.New()
	repo := &settlementRepoStub{
		completeReturns: true,
		donation:        &domain.Donation{ID: uuid.New(), CauseID: causeID},
	}
	producer := &recordingPublisher{}
	engine := newTestEngine(repo, producer)

	tx := pendingTransaction(domain.OrderTypeDonation, 2500)
	result, err := engine.SettleTransaction(context.Background(), tx, "TXN-1001")
	if err != nil {
		t.Fatalf("expected settlement to succeed, got %v", err)
	}
	if result.AlreadyProcessed {
		t.Fatal("expected a fresh settlement, not already-processed")
	}
	if repo.incrementCalls != 1 {
		t.Fatalf("expected exactly one aggregate increment, got %d", repo.incrementCalls)
	}
	if !repo.incrementAmounts[0].Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected aggregate increment of 2500, got %s", repo.incrementAmounts[0])
	}
	if producer.published != 1 || producer.routingKey != "payment.settled" {
		t.Fatalf("expected one payment.settled publish, got %d (%s)", producer.published, producer.routingKey)
	}
	if len(result.Secondary) != 0 {
		t.Fatalf("expected no secondary failures, got %v", result.Secondary)
	}
}

func TestSettleTransaction_AggregateIncrementFailureIsSecondary(t *testing.T) {
	repo := &settlementRepoStub{
		completeReturns: true,
		donation:        &domain.Donation{ID: uuid.New(), CauseID: uuid.New()},
		incrementErr:    errors.New("cause row locked"),
	}
	engine := newTestEngine(repo, &recordingPublisher{})

	tx := pendingTransaction(domain.OrderTypeDonation, 500)
	result, err := engine.SettleTransaction(context.Background(), tx, "TXN-1002")
	if err != nil {
		t.Fatalf("expected settlement to succeed despite increment failure, got %v", err)
	}
	if len(result.Secondary) != 1 || result.Secondary[0].Effect != "cause_aggregate_increment" {
		t.Fatalf("expected one cause_aggregate_increment secondary error, got %v", result.Secondary)
	}
	if repo.markUnfulfilledCalled {
		t.Fatal("secondary failure must not mark the transaction unfulfilled")
	}
}

func TestSettleTransaction_ConcurrentDeliveryReportsAlreadyProcessed(t *testing.T) {
	repo := &settlementRepoStub{completeReturns: false}
	engine := newTestEngine(repo, &recordingPublisher{})

	tx := pendingTransaction(domain.OrderTypeDonation, 1000)
	result, err := engine.SettleTransaction(context.Background(), tx, "TXN-1003")
	if err != nil {
		t.Fatalf("expected no error for a lost race, got %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("expected AlreadyProcessed when no pending row matched")
	}
	if repo.incrementCalls != 0 {
		t.Fatal("lost race must not mutate domain state")
	}
}

func TestSettleTransaction_FatalHandlerErrorMarksUnfulfilled(t *testing.T) {
	repo := &settlementRepoStub{
		completeReturns: true,
		registrationErr: errors.New("registration table unavailable"),
	}
	engine := newTestEngine(repo, &recordingPublisher{})

	tx := pendingTransaction(domain.OrderTypeEventRegistration, 3000)
	_, err := engine.SettleTransaction(context.Background(), tx, "TXN-1004")
	if err == nil {
		t.Fatal("expected a fatal error from the registration handler")
	}
	if !repo.markUnfulfilledCalled {
		t.Fatal("expected the transaction to be marked unfulfilled after the ledger commit")
	}
	if repo.markUnfulfilledReason == "" {
		t.Fatal("expected the failure reason to be recorded")
	}
}

func TestSettleTransaction_UnknownOrderTypeStillSettles(t *testing.T) {
	repo := &settlementRepoStub{completeReturns: true}
	producer := &recordingPublisher{}
	engine := newTestEngine(repo, producer)

	tx := pendingTransaction(domain.OrderType("merchandise"), 800)
	result, err := engine.SettleTransaction(context.Background(), tx, "TXN-1005")
	if err != nil {
		t.Fatalf("expected unknown order type to settle, got %v", err)
	}
	if result.AlreadyProcessed {
		t.Fatal("expected a fresh settlement")
	}
	if repo.incrementCalls != 0 || repo.registrationCalled || repo.applied != nil {
		t.Fatal("unknown order type must not mutate domain state")
	}
	if producer.published != 1 {
		t.Fatal("expected the settled event to publish for unknown order types too")
	}
}

func TestSettleTransaction_MembershipExpiryFollowsMetadataFrequency(t *testing.T) {
	userID := uuid.New()
	repo := &settlementRepoStub{
		completeReturns: true,
		user:            &domain.User{ID: userID, AccountType: domain.AccountTypeIndividual},
	}
	engine := newTestEngine(repo, &recordingPublisher{})

	tx := pendingTransaction(domain.OrderTypeMembership, 1500)
	tx.UserID = &userID
	tx.Metadata = map[string]interface{}{"frequency": "annually", "tier": "gold"}

	if _, err := engine.SettleTransaction(context.Background(), tx, "TXN-1006"); err != nil {
		t.Fatalf("expected membership settlement to succeed, got %v", err)
	}
	if repo.applied == nil {
		t.Fatal("expected a membership update")
	}
	wantExpiry := time.Date(2027, time.March, 15, 12, 0, 0, 0, time.UTC)
	if !repo.applied.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected annual expiry %s, got %s", wantExpiry, repo.applied.ExpiresAt)
	}
	if repo.applied.Tier != "gold" {
		t.Fatalf("expected tier from metadata, got %q", repo.applied.Tier)
	}
}

func TestSettleSubscription_RecurringDonationCreatesFreshChargeRow(t *testing.T) {
	causeID := uuid.New()
	agreementID := uuid.New()
	repo := &settlementRepoStub{
		recurring: &domain.RecurringDonation{ID: agreementID, CauseID: causeID, IsAnonymous: true, Status: "active"},
	}
	producer := &recordingPublisher{}
	engine := newTestEngine(repo, producer)

	sub := &domain.PaymentSubscription{
		ID:               uuid.New(),
		SubscriptionType: domain.SubscriptionTypeRecurringDonation,
		ReferenceID:      &agreementID,
		UserID:           uuid.New(),
		Amount:           decimal.NewFromInt(500),
		Currency:         "JMD",
		Frequency:        domain.FrequencyMonthly,
	}
	result, err := engine.SettleSubscription(context.Background(), sub, "TXN-2001")
	if err != nil {
		t.Fatalf("expected subscription settlement to succeed, got %v", err)
	}
	if !repo.confirmBillingCalled {
		t.Fatal("expected the billing confirmation to run first")
	}
	wantNext := time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)
	if !repo.confirmedNextBilling.Equal(wantNext) {
		t.Fatalf("expected next billing %s, got %s", wantNext, repo.confirmedNextBilling)
	}
	if len(repo.createdDonations) != 1 {
		t.Fatalf("expected one fresh donation row per billing cycle, got %d", len(repo.createdDonations))
	}
	created := repo.createdDonations[0]
	if created.RecurringDonationID == nil || *created.RecurringDonationID != agreementID {
		t.Fatal("expected the donation row to reference the recurring agreement")
	}
	if !created.IsAnonymous {
		t.Fatal("expected the anonymity flag to carry over from the agreement")
	}
	if repo.incrementCalls != 1 || !repo.incrementAmounts[0].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected one aggregate increment of 500, got %d calls", repo.incrementCalls)
	}
	if result.SubscriptionID == nil || *result.SubscriptionID != sub.ID {
		t.Fatal("expected the result to carry the subscription id")
	}
}

func TestSettleSubscription_MembershipExpiryTracksNextBillingDate(t *testing.T) {
	userID := uuid.New()
	tier := "gold"
	repo := &settlementRepoStub{
		user: &domain.User{ID: userID, AccountType: domain.AccountTypeOrganization, MembershipTier: &tier},
	}
	engine := newTestEngine(repo, &recordingPublisher{})

	sub := &domain.PaymentSubscription{
		ID:               uuid.New(),
		SubscriptionType: domain.SubscriptionTypeOrganizationMembership,
		UserID:           userID,
		Amount:           decimal.NewFromInt(10000),
		Currency:         "JMD",
		Frequency:        domain.FrequencyQuarterly,
	}
	if _, err := engine.SettleSubscription(context.Background(), sub, "TXN-2002"); err != nil {
		t.Fatalf("expected membership billing to succeed, got %v", err)
	}
	if repo.applied == nil {
		t.Fatal("expected a membership update")
	}
	wantExpiry := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	if !repo.applied.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry at next billing %s, got %s", wantExpiry, repo.applied.ExpiresAt)
	}
	if repo.applied.AccountType != domain.AccountTypeOrganization {
		t.Fatalf("expected organization account type, got %s", repo.applied.AccountType)
	}
}

func TestSettleTransaction_PublishFailureIsSecondary(t *testing.T) {
	repo := &settlementRepoStub{
		completeReturns: true,
		donation:        &domain.Donation{ID: uuid.New(), CauseID: uuid.New()},
	}
	producer := &recordingPublisher{err: errors.New("broker unreachable")}
	engine := newTestEngine(repo, producer)

	tx := pendingTransaction(domain.OrderTypeDonation, 2000)
	result, err := engine.SettleTransaction(context.Background(), tx, "TXN-1007")
	if err != nil {
		t.Fatalf("expected settlement to succeed despite publish failure, got %v", err)
	}
	if len(result.Secondary) != 1 || result.Secondary[0].Effect != "settled_event_publish" {
		t.Fatalf("expected one settled_event_publish secondary error, got %v", result.Secondary)
	}
}
