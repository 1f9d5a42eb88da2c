package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/model"
	"github.com/arvale/aod-service/internal/schedule"
)

// signatureGraceDays is how far the payment plan is pushed out once the
// customer signs, so the first installment never falls due before the
// signed document is processed.
const signatureGraceDays = 7

// recalcCountTolerance bounds how far the persisted installment count may
// diverge from the agreement term before a date recalculation is refused.
const recalcCountTolerance = 2

type AgreementService struct {
	agreements   AgreementStore
	installments InstallmentStore
	log          zerolog.Logger
	now          func() time.Time
}

func NewAgreementService(agreements AgreementStore, installments InstallmentStore, log zerolog.Logger) *AgreementService {
	return &AgreementService{
		agreements:   agreements,
		installments: installments,
		log:          log.With().Str("component", "agreements").Logger(),
		now:          time.Now,
	}
}

type CreateAgreementInput struct {
	CustomerID        uuid.UUID
	PolicyNumber      string
	OutstandingAmount float64
	PaymentMethod     model.PaymentMethod
	DownPayment       float64
	TermMonths        int
	StartDate         time.Time
	Principal         model.Principal
}

// Create opens a new debt agreement in the pending-signature state. Any
// agreement already active on the same policy is cancelled first, keeping the
// one-active-agreement-per-policy invariant; the operator confirmation for
// that happens upstream in the CRM.
func (s *AgreementService) Create(ctx context.Context, input CreateAgreementInput) (*model.DebtAgreement, error) {
	if !input.Principal.Can(model.OpCreateAgreement) {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.PolicyNumber) == "" {
		return nil, fmt.Errorf("%w: policy_number is required", ErrInvalidInput)
	}
	switch input.PaymentMethod {
	case model.PaymentMethodInstallments, model.PaymentMethodFundDeduction, model.PaymentMethodBenefitsTransfer:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, input.PaymentMethod)
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = dateOnly(s.now())
	}

	var entries []model.ScheduleEntry
	installmentAmount := 0.0
	if input.PaymentMethod == model.PaymentMethodInstallments {
		var err error
		entries, err = schedule.Generate(input.OutstandingAmount, input.DownPayment, input.TermMonths, startDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		installmentAmount = entries[0].Amount
	} else if input.OutstandingAmount <= 0 {
		return nil, fmt.Errorf("%w: outstanding amount must be positive", ErrInvalidInput)
	}

	if prior, err := s.agreements.ActiveByPolicy(ctx, input.PolicyNumber); err != nil {
		return nil, err
	} else if prior != nil {
		prior.Status = model.AgreementStatusCancelled
		if err := s.agreements.Update(ctx, prior); err != nil {
			return nil, err
		}
		s.log.Info().
			Str("policy", input.PolicyNumber).
			Str("cancelled_agreement", prior.ID.String()).
			Msg("cancelled prior active agreement for policy")
	}

	now := s.now()
	sig := model.SignaturePending
	agreement := model.DebtAgreement{
		ID:                uuid.New(),
		CustomerID:        input.CustomerID,
		PolicyNumber:      strings.TrimSpace(input.PolicyNumber),
		OutstandingAmount: input.OutstandingAmount,
		PaymentMethod:     input.PaymentMethod,
		DownPayment:       input.DownPayment,
		TermMonths:        input.TermMonths,
		InstallmentAmount: installmentAmount,
		StartDate:         startDate,
		EndDate:           startDate.AddDate(0, input.TermMonths, 0),
		Status:            model.AgreementStatusActive,
		SignatureStatus:   &sig,
		SignatureDeadline: now.AddDate(0, 0, model.SignatureDeadlineDays),
		CreatedByAgentID:  input.Principal.AgentID,
		CreatedAt:         now,
	}

	installments := make([]model.Installment, 0, len(entries))
	for _, e := range entries {
		agreementID := agreement.ID
		installments = append(installments, model.Installment{
			ID:          uuid.New(),
			AgreementID: &agreementID,
			Sequence:    e.Sequence,
			DueDate:     e.DueDate,
			Amount:      e.Amount,
			Status:      model.InstallmentStatusPending,
			CreatedAt:   now,
		})
	}

	saved, err := s.agreements.Create(ctx, agreement, installments)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("agreement", saved.ID.String()).
		Str("policy", saved.PolicyNumber).
		Int("installments", len(installments)).
		Msg("agreement created")
	return saved, nil
}

func (s *AgreementService) Get(ctx context.Context, id uuid.UUID) (*model.DebtAgreement, error) {
	return s.agreements.Get(ctx, id)
}

// MarkSignatureReceived records the customer's signature and, for installment
// plans, re-anchors the schedule to start one week from now. Legacy
// agreements without a signature status are accepted as a degenerate case:
// the signature is recorded but the already-running schedule is left alone.
func (s *AgreementService) MarkSignatureReceived(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.DebtAgreement, error) {
	if !principal.Can(model.OpSignAgreement) {
		return nil, ErrPermissionDenied
	}

	agreement, err := s.agreements.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case agreement.Legacy():
		if agreement.Status != model.AgreementStatusActive {
			return nil, fmt.Errorf("%w: agreement is %s", ErrInvalidInput, agreement.Status)
		}
	case agreement.Signed():
		return nil, fmt.Errorf("%w: signature already received", ErrInvalidInput)
	case !agreement.SignaturePendingNow():
		return nil, fmt.Errorf("%w: agreement signature window is %s", ErrInvalidInput, *agreement.SignatureStatus)
	case agreement.Status != model.AgreementStatusActive:
		return nil, fmt.Errorf("%w: agreement is %s", ErrInvalidInput, agreement.Status)
	}

	reanchor := !agreement.Legacy() && agreement.PaymentMethod == model.PaymentMethodInstallments
	if reanchor {
		newStart := dateOnly(now).AddDate(0, 0, signatureGraceDays)
		if err := s.reanchorSchedule(ctx, agreement, newStart); err != nil {
			return nil, err
		}
		agreement.StartDate = newStart
		agreement.EndDate = newStart.AddDate(0, agreement.TermMonths, 0)
	}

	received := model.SignatureReceived
	agreement.SignatureStatus = &received
	agreement.SignatureReceivedDate = &now
	agreement.Status = model.AgreementStatusActive

	if err := s.agreements.Update(ctx, agreement); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("agreement", agreement.ID.String()).
		Bool("reanchored", reanchor).
		Msg("signature received")
	return agreement, nil
}

// reanchorSchedule rewrites every installment due date to newStart plus its
// sequence offset in months. If the persisted installment count has drifted
// beyond tolerance from the agreement term, the rewrite is refused: a bulk
// update against mismatched rows would corrupt records belonging to some
// other agreement state.
func (s *AgreementService) reanchorSchedule(ctx context.Context, agreement *model.DebtAgreement, newStart time.Time) error {
	installments, err := s.installments.ListByAgreement(ctx, agreement.ID)
	if err != nil {
		return err
	}
	diff := len(installments) - agreement.TermMonths
	if diff < -recalcCountTolerance || diff > recalcCountTolerance {
		return fmt.Errorf("%w: agreement %s has %d installments for a %d-month term",
			ErrIntegrityGuard, agreement.ID, len(installments), agreement.TermMonths)
	}
	for _, inst := range installments {
		due := newStart.AddDate(0, inst.Sequence-1, 0)
		if err := s.installments.UpdateDueDate(ctx, inst.ID, due); err != nil {
			return err
		}
	}
	return nil
}

// Cancel terminates an agreement from either the pending-signature or active
// state. No date recalculation happens on cancellation.
func (s *AgreementService) Cancel(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.DebtAgreement, error) {
	if !principal.Can(model.OpCancelAgreement) {
		return nil, ErrPermissionDenied
	}

	agreement, err := s.agreements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if agreement.Status != model.AgreementStatusActive {
		return nil, fmt.Errorf("%w: agreement is already %s", ErrInvalidInput, agreement.Status)
	}

	agreement.Status = model.AgreementStatusCancelled
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return nil, err
	}
	s.log.Info().Str("agreement", agreement.ID.String()).Msg("agreement cancelled")
	return agreement, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
