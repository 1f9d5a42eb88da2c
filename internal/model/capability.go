package model

// Operation names an action an agent can attempt against the subsystem.
type Operation string

const (
	OpCreateAgreement Operation = "agreement:create"
	OpSignAgreement   Operation = "agreement:sign"
	OpCancelAgreement Operation = "agreement:cancel"
	OpPullAssignments Operation = "assignments:pull"
	OpExportReports   Operation = "reports:export"
	OpManageScheduler Operation = "scheduler:manage"
	OpViewScheduler   Operation = "scheduler:view"
)

// capabilities is a declarative table mapping agent type to allowed
// operations, replacing the string-tag branching the legacy CRM used for
// allocation eligibility.
var capabilities = map[AgentType]map[Operation]bool{
	AgentTypeCollector: {
		OpCreateAgreement: true,
		OpSignAgreement:   true,
		OpCancelAgreement: true,
		OpPullAssignments: true,
		OpViewScheduler:   true,
	},
	AgentTypeSupervisor: {
		OpCreateAgreement: true,
		OpSignAgreement:   true,
		OpCancelAgreement: true,
		OpPullAssignments: true,
		OpExportReports:   true,
		OpManageScheduler: true,
		OpViewScheduler:   true,
	},
	AgentTypeReadOnly: {
		OpViewScheduler: true,
	},
}

// Can reports whether the given agent type may perform op. Unknown types have
// no capabilities.
func Can(t AgentType, op Operation) bool {
	return capabilities[t][op]
}
