package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arvale/aod-service/internal/model"
)

type fakeAgreementStore struct {
	items     []*model.DebtAgreement
	updateErr error
}

func (f *fakeAgreementStore) Get(_ context.Context, id uuid.UUID) (*model.DebtAgreement, error) {
	for _, a := range f.items {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: agreement %s", ErrNotFound, id)
}

func (f *fakeAgreementStore) Create(_ context.Context, a model.DebtAgreement, installments []model.Installment) (*model.DebtAgreement, error) {
	cp := a
	f.items = append(f.items, &cp)
	saved := a
	return &saved, nil
}

func (f *fakeAgreementStore) Update(_ context.Context, a *model.DebtAgreement) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, stored := range f.items {
		if stored.ID == a.ID {
			*stored = *a
			return nil
		}
	}
	return fmt.Errorf("%w: agreement %s", ErrNotFound, a.ID)
}

func (f *fakeAgreementStore) ActiveByPolicy(_ context.Context, policyNumber string) (*model.DebtAgreement, error) {
	for _, a := range f.items {
		if a.PolicyNumber == policyNumber && a.Status == model.AgreementStatusActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAgreementStore) ListActive(_ context.Context) ([]model.DebtAgreement, error) {
	var out []model.DebtAgreement
	for _, a := range f.items {
		if a.Status == model.AgreementStatusActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAgreementStore) ListPendingSignature(_ context.Context) ([]model.DebtAgreement, error) {
	var out []model.DebtAgreement
	for _, a := range f.items {
		if a.Status == model.AgreementStatusActive && a.SignaturePendingNow() {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeInstallmentStore struct {
	items []*model.Installment
}

func (f *fakeInstallmentStore) Get(_ context.Context, id uuid.UUID) (*model.Installment, error) {
	for _, inst := range f.items {
		if inst.ID == id {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: installment %s", ErrNotFound, id)
}

func (f *fakeInstallmentStore) ListByAgreement(_ context.Context, agreementID uuid.UUID) ([]model.Installment, error) {
	var out []model.Installment
	for _, inst := range f.items {
		if inst.AgreementID != nil && *inst.AgreementID == agreementID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (f *fakeInstallmentStore) ListPendingDueWithin(_ context.Context, from, to time.Time) ([]model.Installment, error) {
	var out []model.Installment
	for _, inst := range f.items {
		if inst.Status != model.InstallmentStatusPending {
			continue
		}
		if inst.DueDate.Before(from) || !inst.DueDate.Before(to) {
			continue
		}
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (f *fakeInstallmentStore) UpdateDueDate(_ context.Context, id uuid.UUID, due time.Time) error {
	for _, inst := range f.items {
		if inst.ID == id {
			inst.DueDate = due
			return nil
		}
	}
	return fmt.Errorf("%w: installment %s", ErrNotFound, id)
}

func (f *fakeInstallmentStore) MarkReminderSent(_ context.Context, id uuid.UUID, count int, at time.Time) error {
	for _, inst := range f.items {
		if inst.ID == id {
			inst.ReminderSentCount = count
			sent := at
			inst.LastReminderSentAt = &sent
			return nil
		}
	}
	return fmt.Errorf("%w: installment %s", ErrNotFound, id)
}

func (f *fakeInstallmentStore) Adopt(_ context.Context, id, agreementID uuid.UUID) error {
	for _, inst := range f.items {
		if inst.ID == id {
			adopted := agreementID
			inst.AgreementID = &adopted
			return nil
		}
	}
	return fmt.Errorf("%w: installment %s", ErrNotFound, id)
}

type fakeCustomerStore struct {
	items []*model.Customer
	// snapshotPool makes ListAvailable return every customer regardless of
	// assignment status, emulating concurrent pulls that all read the same
	// point-in-time pool before any assignment lands.
	snapshotPool bool
}

func (f *fakeCustomerStore) Get(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	for _, c := range f.items {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
}

func (f *fakeCustomerStore) ListAvailable(_ context.Context) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range f.items {
		if f.snapshotPool || c.AssignmentStatus == model.AssignmentAvailable {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCustomerStore) ListAssigned(_ context.Context) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range f.items {
		if c.AssignmentStatus == model.AssignmentAssigned {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCustomerStore) Assign(_ context.Context, customerID, agentID uuid.UUID, at time.Time, priority float64) error {
	for _, c := range f.items {
		if c.ID == customerID {
			c.AssignmentStatus = model.AssignmentAssigned
			agent := agentID
			c.AssignedAgentID = &agent
			when := at
			c.AssignedAt = &when
			c.PriorityScore = priority
			return nil
		}
	}
	return fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
}

type fakeAgentStore struct {
	items []*model.Agent
}

func (f *fakeAgentStore) Get(_ context.Context, id uuid.UUID) (*model.Agent, error) {
	for _, a := range f.items {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: agent %s", ErrNotFound, id)
}

func (f *fakeAgentStore) ListActive(_ context.Context) ([]model.Agent, error) {
	var out []model.Agent
	for _, a := range f.items {
		if a.Active {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAgentStore) IncrementBatchSize(_ context.Context, id uuid.UUID, by int) error {
	for _, a := range f.items {
		if a.ID == id {
			a.CurrentBatchSize += by
			return nil
		}
	}
	return fmt.Errorf("%w: agent %s", ErrNotFound, id)
}

type sentMessage struct {
	target  string
	content string
}

type fakeNotifier struct {
	sent    []sentMessage
	failFor map[string]bool
	err     error
}

func (f *fakeNotifier) Send(_ context.Context, target, content string) error {
	if f.err != nil {
		return f.err
	}
	if f.failFor[target] {
		return fmt.Errorf("gateway refused %s", target)
	}
	f.sent = append(f.sent, sentMessage{target: target, content: content})
	return nil
}
