package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arvale/aod-service/internal/model"
	"github.com/arvale/aod-service/internal/service"
)

const agentColumns = `
	id,
	full_name,
	agent_type AS type,
	active,
	current_batch_size
`

type AgentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Agent, error) {
	var agent model.Agent
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agentColumns+`
		FROM agents
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&agent).Error
	if err != nil {
		return nil, err
	}
	if agent.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: agent %s", service.ErrNotFound, id)
	}
	return &agent, nil
}

// ListActive returns active agents in stable id order, the order the fair
// distributor ranks against.
func (r *AgentRepository) ListActive(ctx context.Context) ([]model.Agent, error) {
	var agents []model.Agent
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agentColumns+`
		FROM agents
		WHERE active
		ORDER BY id
	`).Scan(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *AgentRepository) IncrementBatchSize(ctx context.Context, id uuid.UUID, by int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE agents SET current_batch_size = current_batch_size + ? WHERE id = ?
	`, by, id).Error
}
