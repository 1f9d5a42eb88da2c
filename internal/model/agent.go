package model

import "github.com/google/uuid"

type AgentType string

const (
	AgentTypeCollector  AgentType = "COLLECTOR"
	AgentTypeSupervisor AgentType = "SUPERVISOR"
	AgentTypeReadOnly   AgentType = "READ_ONLY"
)

type Agent struct {
	ID               uuid.UUID
	FullName         string
	Type             AgentType
	Active           bool
	CurrentBatchSize int
}

// Principal identifies the authenticated agent behind a request.
type Principal struct {
	AgentID uuid.UUID
	Type    AgentType
}

func (p Principal) IsSupervisor() bool { return p.Type == AgentTypeSupervisor }

// Can consults the capability table for the principal's agent type.
func (p Principal) Can(op Operation) bool { return Can(p.Type, op) }
