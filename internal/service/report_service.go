package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/model"
)

// ExcelGenerator renders an assignment report to a spreadsheet.
type ExcelGenerator interface {
	Generate(report model.AssignmentReport) ([]byte, error)
}

type ReportService struct {
	customers CustomerStore
	agents    AgentStore
	excel     ExcelGenerator
	log       zerolog.Logger
	now       func() time.Time
}

func NewReportService(customers CustomerStore, agents AgentStore, excel ExcelGenerator, log zerolog.Logger) *ReportService {
	return &ReportService{
		customers: customers,
		agents:    agents,
		excel:     excel,
		log:       log.With().Str("component", "reports").Logger(),
		now:       time.Now,
	}
}

type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportAssignments renders the current assignment spread, one sheet per
// active agent, for supervisor review.
func (s *ReportService) ExportAssignments(ctx context.Context, principal model.Principal) (*ExportResult, error) {
	if !principal.Can(model.OpExportReports) {
		return nil, ErrPermissionDenied
	}

	agents, err := s.agents.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	assigned, err := s.customers.ListAssigned(ctx)
	if err != nil {
		return nil, err
	}

	byAgent := make(map[string][]model.Customer, len(agents))
	for _, customer := range assigned {
		if customer.AssignedAgentID == nil {
			continue
		}
		key := customer.AssignedAgentID.String()
		byAgent[key] = append(byAgent[key], customer)
	}

	report := model.AssignmentReport{GeneratedAt: s.now()}
	for _, agent := range agents {
		report.Agents = append(report.Agents, model.AgentAssignments{
			Agent:     agent,
			Customers: byAgent[agent.ID.String()],
		})
	}

	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: fmt.Sprintf("assignments-%s.xlsx", report.GeneratedAt.Format("20060102-1504")),
		Content:  content,
	}, nil
}
