/*
Package report renders engine output as spreadsheets.

The manager matrix workbook has one sheet per target, newest first. Each
sheet starts with the manager-level record measured against the target's
totals, followed by one row per agent on the manager's roster.
*/
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/target-engine/quota"
)

// MatrixHeader is the column layout of every matrix sheet.
var MatrixHeader = []string{
	"Agent", "Window Start", "Window End",
	"Product Quota", "Products", "Product %",
	"Cash Quota", "Cash", "Cash %",
	"Customer Quota", "Customers", "Customer %",
	"Overall %", "Commission %", "Surplus Cash", "Commission",
}

const maxSheetName = 31

// ManagerMatrix writes the matrix returned by Aggregator.ForManager.
func ManagerMatrix(rows []quota.ManagerTargetReport) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if len(rows) == 0 {
		header := MatrixHeader
		if err := xl.SetSheetRow(xl.GetSheetName(0), "A1", &header); err != nil {
			return nil, err
		}
	}

	bold, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	used := map[string]bool{}
	for i, row := range rows {
		name := uniqueSheetName(row.Manager.Title, i, used)
		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), name); err != nil {
				return nil, err
			}
		} else if _, err := xl.NewSheet(name); err != nil {
			return nil, err
		}

		header := MatrixHeader
		if err := xl.SetSheetRow(name, "A1", &header); err != nil {
			return nil, err
		}

		records := append([]quota.Progress{row.Manager}, row.Agents...)
		for ri, p := range records {
			cell, _ := excelize.CoordinatesToCellName(1, ri+2)
			values := progressRow(p, ri == 0)
			if err := xl.SetSheetRow(name, cell, &values); err != nil {
				return nil, err
			}
		}

		last, _ := excelize.CoordinatesToCellName(len(MatrixHeader), 2)
		if err := xl.SetCellStyle(name, "A1", last, bold); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := xl.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func progressRow(p quota.Progress, managerLevel bool) []any {
	label := p.AgentName
	if managerLevel {
		label = "TOTAL " + p.AgentName
	}
	return []any{
		label, p.Window.Start.String(), p.Window.End.String(),
		p.Quotas.Product, p.Achieved.Products, number(p.Scores.Product),
		number(p.Quotas.Cash), number(p.Achieved.Cash), number(p.Scores.Payment),
		p.Quotas.Customer, p.Achieved.Customers, number(p.Scores.Customer),
		number(p.Scores.Overall), number(p.CommissionPct), number(p.Payout.Surplus), number(p.Payout.Amount),
	}
}

func number(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// uniqueSheetName strips characters Excel rejects and de-duplicates.
func uniqueSheetName(title string, index int, used map[string]bool) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	base := strings.TrimSpace(replacer.Replace(title))
	if base == "" {
		base = fmt.Sprintf("Target %d", index+1)
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[name] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
