package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/arvale/aod-service/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the assignment report: a summary sheet plus one sheet per
// active agent with that agent's assigned customers.
func (g *Generator) Generate(report model.AssignmentReport) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, entry := range report.Agents {
		sheetName := buildSheetName(entry.Agent.FullName, entry.Agent.ID, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeAgentDetail(file, sheetName, entry); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.AssignmentReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	totalAssigned := 0
	totalDue := 0.0
	for _, entry := range report.Agents {
		totalAssigned += len(entry.Customers)
		for _, customer := range entry.Customers {
			totalDue += customer.AmountDue
		}
	}

	set("A1", "Report")
	set("B1", "Assignment spread")
	set("A2", "Generated at")
	set("B2", formatDateTime(report.GeneratedAt))
	set("A3", "Active agents")
	set("B3", len(report.Agents))
	set("A4", "Assigned customers")
	set("B4", totalAssigned)
	set("A5", "Total amount due")
	set("B5", fmt.Sprintf("%.2f", totalDue))

	tableRow := 7
	set(fmt.Sprintf("A%d", tableRow), "Agent")
	set(fmt.Sprintf("B%d", tableRow), "Batch size")
	set(fmt.Sprintf("C%d", tableRow), "Assigned in report")
	set(fmt.Sprintf("D%d", tableRow), "Amount due total")

	for i, entry := range report.Agents {
		row := tableRow + 1 + i
		due := 0.0
		for _, customer := range entry.Customers {
			due += customer.AmountDue
		}
		set(fmt.Sprintf("A%d", row), entry.Agent.FullName)
		set(fmt.Sprintf("B%d", row), entry.Agent.CurrentBatchSize)
		set(fmt.Sprintf("C%d", row), len(entry.Customers))
		set(fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", due))
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "D", 18)
	return nil
}

func (g *Generator) writeAgentDetail(file *excelize.File, sheet string, entry model.AgentAssignments) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Agent")
	set("B1", entry.Agent.FullName)
	set("A2", "Agent type")
	set("B2", string(entry.Agent.Type))
	set("A3", "Current batch size")
	set("B3", entry.Agent.CurrentBatchSize)

	tableRow := 5
	headers := []string{
		"Customer",
		"Policy",
		"Amount due",
		"Priority score",
		"Assigned at",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, customer := range entry.Customers {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), customer.FullName)
		set(fmt.Sprintf("B%d", row), customer.PolicyNumber)
		set(fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", customer.AmountDue))
		set(fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", customer.PriorityScore))
		if customer.AssignedAt != nil {
			set(fmt.Sprintf("E%d", row), formatDateTime(*customer.AssignedAt))
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 36)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	_ = file.SetColWidth(sheet, "C", "E", 18)
	return nil
}

func buildSheetName(name string, id uuid.UUID, used map[string]struct{}) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = id.String()
	}
	base = sanitizeSheetName(base)
	if len(base) > 31 {
		base = base[:31]
	}

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		candidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Agent"
	}
	return value
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
