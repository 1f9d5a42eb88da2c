package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentAvailable AssignmentStatus = "AVAILABLE"
	AssignmentAssigned  AssignmentStatus = "ASSIGNED"
)

type Customer struct {
	ID               uuid.UUID
	FullName         string
	PolicyNumber     string
	Phone            string
	Email            string
	AmountDue        float64
	AssignmentStatus AssignmentStatus
	AssignedAgentID  *uuid.UUID
	AssignedAt       *time.Time
	PriorityScore    float64
}
