package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/model"
)

func newDistributionService(customers *fakeCustomerStore, agents *fakeAgentStore, now time.Time) *DistributionService {
	s := NewDistributionService(customers, agents, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

// buildPool returns customers pre-sorted descending by amount due, the order
// the store hands the distributor.
func buildPool(n int) []*model.Customer {
	pool := make([]*model.Customer, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, &model.Customer{
			ID:               uuid.New(),
			FullName:         fmt.Sprintf("Customer %02d", i),
			AmountDue:        float64(10000 - i*100),
			AssignmentStatus: model.AssignmentAvailable,
		})
	}
	return pool
}

func buildAgents(n int) []*model.Agent {
	agents := make([]*model.Agent, 0, n)
	for i := 0; i < n; i++ {
		agents = append(agents, &model.Agent{
			ID:       uuid.New(),
			FullName: fmt.Sprintf("Agent %d", i),
			Type:     model.AgentTypeCollector,
			Active:   true,
		})
	}
	return agents
}

func TestPullBatchStridePartition(t *testing.T) {
	// Three active agents, 25 available customers: agent k takes pool
	// indices k, k+3, k+6, ... All pulls read the same pool snapshot, as
	// they do when agents pull concurrently.
	pool := buildPool(25)
	agents := buildAgents(3)
	customers := &fakeCustomerStore{items: pool, snapshotPool: true}
	agentStore := &fakeAgentStore{items: agents}
	s := newDistributionService(customers, agentStore, date(2024, time.May, 1))

	claimed := map[uuid.UUID]int{}
	wantSizes := []int{9, 8, 8}
	for k, agent := range agents {
		result, err := s.PullBatch(context.Background(), model.Principal{AgentID: agent.ID, Type: agent.Type})
		if err != nil {
			t.Fatalf("agent %d PullBatch: %v", k, err)
		}
		if result.AgentRank != k {
			t.Errorf("agent %d rank = %d", k, result.AgentRank)
		}
		if len(result.Assigned) != wantSizes[k] {
			t.Errorf("agent %d assigned %d, want %d", k, len(result.Assigned), wantSizes[k])
		}
		for j, customer := range result.Assigned {
			wantIdx := k + j*3
			if pool[wantIdx].ID != customer.ID {
				t.Errorf("agent %d item %d: got customer %s, want pool index %d", k, j, customer.FullName, wantIdx)
			}
			claimed[customer.ID]++
		}
	}

	if len(claimed) != 25 {
		t.Errorf("union of assignments covers %d customers, want all 25", len(claimed))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("customer %s claimed %d times", id, n)
		}
	}
}

func TestPullBatchFairnessFullBatches(t *testing.T) {
	// M >= 10N: every agent gets exactly ten, covering the first 10N pool
	// entries with no overlap.
	pool := buildPool(35)
	agents := buildAgents(3)
	customers := &fakeCustomerStore{items: pool, snapshotPool: true}
	s := newDistributionService(customers, &fakeAgentStore{items: agents}, date(2024, time.May, 1))

	claimed := map[uuid.UUID]bool{}
	for k, agent := range agents {
		result, err := s.PullBatch(context.Background(), model.Principal{AgentID: agent.ID, Type: agent.Type})
		if err != nil {
			t.Fatalf("agent %d PullBatch: %v", k, err)
		}
		if len(result.Assigned) != 10 {
			t.Errorf("agent %d assigned %d, want 10", k, len(result.Assigned))
		}
		for _, customer := range result.Assigned {
			if claimed[customer.ID] {
				t.Errorf("customer %s claimed twice", customer.ID)
			}
			claimed[customer.ID] = true
		}
	}
	for i := 0; i < 30; i++ {
		if !claimed[pool[i].ID] {
			t.Errorf("pool index %d not covered by the first round of pulls", i)
		}
	}
	for i := 30; i < 35; i++ {
		if claimed[pool[i].ID] {
			t.Errorf("pool index %d claimed although outside the first 10N", i)
		}
	}
}

func TestPullBatchStampsAssignment(t *testing.T) {
	pool := buildPool(4)
	agents := buildAgents(1)
	now := date(2024, time.May, 2)
	customers := &fakeCustomerStore{items: pool}
	agentStore := &fakeAgentStore{items: agents}
	s := newDistributionService(customers, agentStore, now)

	result, err := s.PullBatch(context.Background(), model.Principal{AgentID: agents[0].ID, Type: model.AgentTypeCollector})
	if err != nil {
		t.Fatalf("PullBatch: %v", err)
	}
	if len(result.Assigned) != 4 {
		t.Fatalf("assigned %d, want 4", len(result.Assigned))
	}
	for _, stored := range pool {
		if stored.AssignmentStatus != model.AssignmentAssigned {
			t.Errorf("customer %s still %s", stored.FullName, stored.AssignmentStatus)
		}
		if stored.AssignedAt == nil || !stored.AssignedAt.Equal(now) {
			t.Errorf("customer %s assignment time not stamped", stored.FullName)
		}
		if stored.PriorityScore != stored.AmountDue {
			t.Errorf("customer %s priority %.2f, want amount due %.2f", stored.FullName, stored.PriorityScore, stored.AmountDue)
		}
	}
	if agents[0].CurrentBatchSize != 4 {
		t.Errorf("agent batch size = %d, want 4", agents[0].CurrentBatchSize)
	}
}

func TestPullBatchEmptyPool(t *testing.T) {
	agents := buildAgents(2)
	s := newDistributionService(&fakeCustomerStore{}, &fakeAgentStore{items: agents}, date(2024, time.May, 1))
	_, err := s.PullBatch(context.Background(), model.Principal{AgentID: agents[0].ID, Type: model.AgentTypeCollector})
	if !errors.Is(err, ErrNoCustomersAvailable) {
		t.Errorf("PullBatch = %v, want ErrNoCustomersAvailable", err)
	}
}

func TestPullBatchUnknownAgent(t *testing.T) {
	s := newDistributionService(
		&fakeCustomerStore{items: buildPool(5)},
		&fakeAgentStore{items: buildAgents(2)},
		date(2024, time.May, 1))
	_, err := s.PullBatch(context.Background(), model.Principal{AgentID: uuid.New(), Type: model.AgentTypeCollector})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("PullBatch = %v, want ErrNotFound", err)
	}
}

func TestPullBatchInactiveAgentExcluded(t *testing.T) {
	agents := buildAgents(2)
	agents[1].Active = false
	s := newDistributionService(
		&fakeCustomerStore{items: buildPool(5)},
		&fakeAgentStore{items: agents},
		date(2024, time.May, 1))
	_, err := s.PullBatch(context.Background(), model.Principal{AgentID: agents[1].ID, Type: model.AgentTypeCollector})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("PullBatch for inactive agent = %v, want ErrNotFound", err)
	}
}

func TestPullBatchPermissionDenied(t *testing.T) {
	agents := buildAgents(1)
	s := newDistributionService(
		&fakeCustomerStore{items: buildPool(5)},
		&fakeAgentStore{items: agents},
		date(2024, time.May, 1))
	_, err := s.PullBatch(context.Background(), model.Principal{AgentID: agents[0].ID, Type: model.AgentTypeReadOnly})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("PullBatch = %v, want ErrPermissionDenied", err)
	}
}
