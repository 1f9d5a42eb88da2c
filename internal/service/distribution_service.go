package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/model"
)

// maxBatchSize caps how many customers one pull hands to an agent.
const maxBatchSize = 10

type DistributionService struct {
	customers CustomerStore
	agents    AgentStore
	log       zerolog.Logger
	now       func() time.Time
}

func NewDistributionService(customers CustomerStore, agents AgentStore, log zerolog.Logger) *DistributionService {
	return &DistributionService{
		customers: customers,
		agents:    agents,
		log:       log.With().Str("component", "distribution").Logger(),
		now:       time.Now,
	}
}

// BatchAssignment is the result of one fair-distribution pull.
type BatchAssignment struct {
	AgentID   uuid.UUID        `json:"agent_id"`
	Assigned  []model.Customer `json:"assigned"`
	PoolSize  int              `json:"pool_size"`
	AgentRank int              `json:"agent_rank"`
}

// PullBatch assigns up to ten available customers to the requesting agent by
// stride indexing: with N active agents and the pool ordered by amount due
// descending, the agent at rank k takes pool indices k, k+N, k+2N and so on.
// Each active agent pulling once therefore partitions the head of the pool
// with no overlaps.
func (s *DistributionService) PullBatch(ctx context.Context, principal model.Principal) (*BatchAssignment, error) {
	if !principal.Can(model.OpPullAssignments) {
		return nil, ErrPermissionDenied
	}

	agents, err := s.agents.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	rank := -1
	for i := range agents {
		if agents[i].ID == principal.AgentID {
			rank = i
			break
		}
	}
	if rank < 0 {
		return nil, fmt.Errorf("%w: agent %s is not in the active roster", ErrNotFound, principal.AgentID)
	}

	pool, err := s.customers.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoCustomersAvailable
	}

	stride := len(agents)
	now := s.now()
	assignment := &BatchAssignment{
		AgentID:   principal.AgentID,
		PoolSize:  len(pool),
		AgentRank: rank,
	}
	for i := rank; i < len(pool) && len(assignment.Assigned) < maxBatchSize; i += stride {
		customer := pool[i]
		// Priority score mirrors the amount due at selection time.
		if err := s.customers.Assign(ctx, customer.ID, principal.AgentID, now, customer.AmountDue); err != nil {
			return nil, err
		}
		customer.AssignmentStatus = model.AssignmentAssigned
		customer.AssignedAgentID = &assignment.AgentID
		customer.AssignedAt = &now
		customer.PriorityScore = customer.AmountDue
		assignment.Assigned = append(assignment.Assigned, customer)
	}

	if len(assignment.Assigned) > 0 {
		if err := s.agents.IncrementBatchSize(ctx, principal.AgentID, len(assignment.Assigned)); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("agent", principal.AgentID.String()).
		Int("assigned", len(assignment.Assigned)).
		Int("pool", len(pool)).
		Msg("batch assigned")
	return assignment, nil
}
