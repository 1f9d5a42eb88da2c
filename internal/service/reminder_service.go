package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/model"
)

// Payment reminders go out 7 and 3 days before an installment falls due,
// capped at two per installment.
var paymentReminderOffsets = map[int]int{7: 0, 3: 1}

const paymentReminderCap = 2

// Signature reminders go out 7, 14 and 21 days after agreement creation.
// Day 30 expires the agreement instead; the thresholds never overlap it.
var signatureReminderThresholds = [3]int{7, 14, 21}

// orphanAmountTolerance is the widest gap between an orphaned installment's
// amount and a candidate agreement's installment amount that still counts as
// a match during parent recovery.
const orphanAmountTolerance = 1.0

// ReminderService runs the two reminder cadences. Both share the same shape:
// elapsed-time thresholds, a monotonically increasing send count, a hard cap,
// and a terminal check evaluated before the reminder check.
type ReminderService struct {
	agreements   AgreementStore
	installments InstallmentStore
	customers    CustomerStore
	email        Notifier
	sms          Notifier
	publicURL    string
	log          zerolog.Logger
	now          func() time.Time
}

func NewReminderService(
	agreements AgreementStore,
	installments InstallmentStore,
	customers CustomerStore,
	email, sms Notifier,
	publicURL string,
	log zerolog.Logger,
) *ReminderService {
	return &ReminderService{
		agreements:   agreements,
		installments: installments,
		customers:    customers,
		email:        email,
		sms:          sms,
		publicURL:    publicURL,
		log:          log.With().Str("component", "reminders").Logger(),
		now:          time.Now,
	}
}

// Run executes the signature cadence and then the payment cadence for the
// given calendar day, aggregating both into one batch result. Systemic
// failures (the initial store listing) abort the run; per-item failures do
// not.
func (s *ReminderService) Run(ctx context.Context, today time.Time) (BatchResult, error) {
	today = dateOnly(today)
	var batch BatchResult

	sig, err := s.runSignatureCadence(ctx, today)
	if err != nil {
		return batch, err
	}
	batch.merge(sig)

	pay, err := s.runPaymentCadence(ctx, today)
	if err != nil {
		return batch, err
	}
	batch.merge(pay)

	s.log.Info().
		Int("successful", batch.Successful).
		Int("failed", batch.Failed).
		Time("day", today).
		Msg("reminder run finished")
	return batch, nil
}

func (s *ReminderService) runSignatureCadence(ctx context.Context, today time.Time) (BatchResult, error) {
	var batch BatchResult

	pending, err := s.agreements.ListPendingSignature(ctx)
	if err != nil {
		return batch, fmt.Errorf("%w: listing pending agreements: %v", ErrExternalService, err)
	}

	for i := range pending {
		agreement := &pending[i]
		elapsed := daysBetween(today, dateOnly(agreement.CreatedAt))

		// Expiry takes precedence over any reminder threshold.
		if elapsed >= model.SignatureDeadlineDays {
			batch.add(s.expireAgreement(ctx, agreement))
			continue
		}

		number := agreement.SignatureReminderCount + 1
		if number > len(signatureReminderThresholds) {
			continue
		}
		if elapsed != signatureReminderThresholds[number-1] {
			continue
		}
		batch.add(s.sendSignatureReminder(ctx, agreement, number))
	}
	return batch, nil
}

func (s *ReminderService) expireAgreement(ctx context.Context, agreement *model.DebtAgreement) ItemOutcome {
	outcome := ItemOutcome{Kind: ReminderKindSignature, RecordID: agreement.ID, Expired: true}

	expired := model.SignatureExpired
	agreement.SignatureStatus = &expired
	agreement.Status = model.AgreementStatusExpired
	if err := s.agreements.Update(ctx, agreement); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.OK = true

	// The state change stands even if the courtesy notification fails.
	content := fmt.Sprintf(
		"Your payment arrangement for policy %s has expired because we did not receive your signed agreement within %d days. Please contact your agent to restart the process.",
		agreement.PolicyNumber, model.SignatureDeadlineDays)
	if err := s.notifyCustomer(ctx, agreement.CustomerID, content); err != nil {
		outcome.Error = err.Error()
		s.log.Warn().Err(err).Str("agreement", agreement.ID.String()).Msg("expiry notification failed")
	}
	s.log.Info().Str("agreement", agreement.ID.String()).Msg("agreement expired unsigned")
	return outcome
}

func (s *ReminderService) sendSignatureReminder(ctx context.Context, agreement *model.DebtAgreement, number int) ItemOutcome {
	outcome := ItemOutcome{Kind: ReminderKindSignature, RecordID: agreement.ID, ReminderNumber: number}

	deadline := agreement.SignatureDeadline.Format("2 January 2006")
	content := fmt.Sprintf(
		"Reminder %d of %d: your payment arrangement for policy %s is waiting for your signature. Please sign and return it before %s.",
		number, len(signatureReminderThresholds), agreement.PolicyNumber, deadline)
	if err := s.notifyCustomer(ctx, agreement.CustomerID, content); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	agreement.SignatureReminderCount = number
	if err := s.agreements.Update(ctx, agreement); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.OK = true
	return outcome
}

func (s *ReminderService) runPaymentCadence(ctx context.Context, today time.Time) (BatchResult, error) {
	var batch BatchResult

	candidates, err := s.installments.ListPendingDueWithin(ctx, today, today.AddDate(0, 0, 8))
	if err != nil {
		return batch, fmt.Errorf("%w: listing pending installments: %v", ErrExternalService, err)
	}

	for i := range candidates {
		inst := &candidates[i]
		number, ok := paymentReminderDue(inst, today)
		if !ok {
			continue
		}

		agreement, err := s.resolveParent(ctx, inst)
		if err != nil {
			batch.add(ItemOutcome{
				Kind:     ReminderKindPayment,
				RecordID: inst.ID,
				Error:    err.Error(),
			})
			continue
		}
		// Installments under a still-pending or expired agreement are
		// skipped silently, not reminded.
		if agreement.Status != model.AgreementStatusActive || !agreement.Signed() {
			continue
		}
		batch.add(s.sendPaymentReminder(ctx, inst, agreement, number))
	}
	return batch, nil
}

// paymentReminderDue returns the reminder number due today for the
// installment, if any: #1 seven days out, #2 three days out, never past the
// cap.
func paymentReminderDue(inst *model.Installment, today time.Time) (int, bool) {
	if inst.ReminderSentCount >= paymentReminderCap {
		return 0, false
	}
	d := daysBetween(dateOnly(inst.DueDate), today)
	expectedCount, ok := paymentReminderOffsets[d]
	if !ok || inst.ReminderSentCount != expectedCount {
		return 0, false
	}
	return inst.ReminderSentCount + 1, true
}

func (s *ReminderService) sendPaymentReminder(ctx context.Context, inst *model.Installment, agreement *model.DebtAgreement, number int) ItemOutcome {
	outcome := ItemOutcome{Kind: ReminderKindPayment, RecordID: inst.ID, ReminderNumber: number}

	content := fmt.Sprintf(
		"Payment reminder: installment %d of %.2f for policy %s is due on %s. Pay online: %s/reminder/%s",
		inst.Sequence, inst.Amount, agreement.PolicyNumber,
		dateOnly(inst.DueDate).Format("2 January 2006"),
		s.publicURL, inst.ID)
	if err := s.notifyCustomer(ctx, agreement.CustomerID, content); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if err := s.installments.MarkReminderSent(ctx, inst.ID, number, s.now()); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.OK = true
	return outcome
}

// resolveParent loads the installment's agreement, running the orphan repair
// heuristic when the reference is missing or dangling: adopt the only active
// agreement if there is exactly one, otherwise adopt the unique active
// agreement whose installment amount matches within tolerance. Anything
// ambiguous is surfaced as ErrOrphanedRecord for an operator to untangle.
func (s *ReminderService) resolveParent(ctx context.Context, inst *model.Installment) (*model.DebtAgreement, error) {
	if inst.AgreementID != nil {
		agreement, err := s.agreements.Get(ctx, *inst.AgreementID)
		if err == nil {
			return agreement, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	active, err := s.agreements.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var candidate *model.DebtAgreement
	if len(active) == 1 {
		candidate = &active[0]
	} else {
		for i := range active {
			if math.Abs(active[i].InstallmentAmount-inst.Amount) < orphanAmountTolerance {
				if candidate != nil {
					return nil, fmt.Errorf("%w: installment %s matches multiple active agreements by amount", ErrOrphanedRecord, inst.ID)
				}
				candidate = &active[i]
			}
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: installment %s", ErrOrphanedRecord, inst.ID)
	}

	if err := s.installments.Adopt(ctx, inst.ID, candidate.ID); err != nil {
		return nil, err
	}
	adopted := candidate.ID
	inst.AgreementID = &adopted
	s.log.Warn().
		Str("installment", inst.ID.String()).
		Str("agreement", candidate.ID.String()).
		Msg("orphaned installment adopted by active agreement")
	return candidate, nil
}

// Preview lists everything the cadences would act on today without sending
// or mutating anything.
func (s *ReminderService) Preview(ctx context.Context, today time.Time) ([]PreviewItem, error) {
	today = dateOnly(today)
	var items []PreviewItem

	pending, err := s.agreements.ListPendingSignature(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending agreements: %v", ErrExternalService, err)
	}
	for i := range pending {
		agreement := &pending[i]
		elapsed := daysBetween(today, dateOnly(agreement.CreatedAt))
		if elapsed >= model.SignatureDeadlineDays {
			items = append(items, PreviewItem{
				Kind:        ReminderKindSignature,
				RecordID:    agreement.ID,
				AgreementID: agreement.ID,
			})
			continue
		}
		number := agreement.SignatureReminderCount + 1
		if number <= len(signatureReminderThresholds) && elapsed == signatureReminderThresholds[number-1] {
			items = append(items, PreviewItem{
				Kind:           ReminderKindSignature,
				RecordID:       agreement.ID,
				AgreementID:    agreement.ID,
				ReminderNumber: number,
			})
		}
	}

	candidates, err := s.installments.ListPendingDueWithin(ctx, today, today.AddDate(0, 0, 8))
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending installments: %v", ErrExternalService, err)
	}
	for i := range candidates {
		inst := &candidates[i]
		number, ok := paymentReminderDue(inst, today)
		if !ok {
			continue
		}
		item := PreviewItem{
			Kind:           ReminderKindPayment,
			RecordID:       inst.ID,
			ReminderNumber: number,
			Amount:         inst.Amount,
		}
		due := dateOnly(inst.DueDate)
		item.DueDate = &due
		if inst.AgreementID != nil {
			item.AgreementID = *inst.AgreementID
		}
		items = append(items, item)
	}
	return items, nil
}

// notifyCustomer sends over both channels the customer has. Each channel is
// attempted independently; the reminder counts as delivered when at least
// one succeeds.
func (s *ReminderService) notifyCustomer(ctx context.Context, customerID uuid.UUID, content string) error {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return fmt.Errorf("%w: loading customer %s: %v", ErrExternalService, customerID, err)
	}

	var delivered bool
	var lastErr error
	if customer.Email != "" {
		if err := s.email.Send(ctx, customer.Email, content); err != nil {
			lastErr = err
			s.log.Warn().Err(err).Str("customer", customerID.String()).Msg("email send failed")
		} else {
			delivered = true
		}
	}
	if customer.Phone != "" {
		if err := s.sms.Send(ctx, customer.Phone, content); err != nil {
			lastErr = err
			s.log.Warn().Err(err).Str("customer", customerID.String()).Msg("sms send failed")
		} else {
			delivered = true
		}
	}
	if !delivered {
		if lastErr != nil {
			return fmt.Errorf("%w: %v", ErrExternalService, lastErr)
		}
		return fmt.Errorf("%w: customer %s has no contact channel", ErrExternalService, customerID)
	}
	return nil
}

func daysBetween(a, b time.Time) int {
	return int(a.Sub(b).Hours() / 24)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
