package model

import "time"

// AgentAssignments groups one agent's currently assigned customers for the
// supervisor export.
type AgentAssignments struct {
	Agent     Agent
	Customers []Customer
}

type AssignmentReport struct {
	GeneratedAt time.Time
	Agents      []AgentAssignments
}
