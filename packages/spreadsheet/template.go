package spreadsheet

import (
	"fmt"
	"maps"
	"slices"
)

// TemplateEntry is one prefilled cell of a template
type TemplateEntry struct {
	Address string
	Raw     string
	Format  CellFormat
}

// Template is a named set of prefilled cells
type Template struct {
	Name    string
	Entries []TemplateEntry
}

var (
	stampFormat = CellFormat{Italic: true, FontSize: 10}
	boldFormat  = CellFormat{Bold: true}
)

func label(address, text string) TemplateEntry {
	return TemplateEntry{Address: address, Raw: text}
}

func styled(address, raw string, format CellFormat) TemplateEntry {
	return TemplateEntry{Address: address, Raw: raw, Format: format}
}

func shaded(color string) CellFormat {
	return CellFormat{Bold: true, Background: color}
}

// BudgetTemplate is a personal budget with fluctuating income and expense
// lines
func BudgetTemplate() Template {
	return Template{
		Name: "Budget",
		Entries: []TemplateEntry{
			styled("A1", "Personal Budget", CellFormat{Bold: true, FontSize: 16, Background: "#e8f5e8"}),
			styled("A2", `=CONCATENATE("Last Updated: ",NOW())`, stampFormat),

			styled("A3", "Income", shaded("#d4edda")),
			styled("B3", "Amount", shaded("#d4edda")),
			label("A4", "Salary"),
			label("B4", "5500"),
			label("A5", "Freelance"),
			label("B5", "=1200+RAND()*800"),
			label("A6", "Investment Returns"),
			label("B6", "=RAND()*500"),
			styled("A7", "Total Income", boldFormat),
			styled("B7", "=SUM(B4:B6)", shaded("#d1ecf1")),

			styled("A9", "Expenses", shaded("#f8d7da")),
			styled("B9", "Amount", shaded("#f8d7da")),
			label("A10", "Rent"),
			label("B10", "1200"),
			label("A11", "Groceries"),
			label("B11", "=350+RAND()*100"),
			label("A12", "Utilities"),
			label("B12", "=180+RAND()*40"),
			label("A13", "Entertainment"),
			label("B13", "=200+RAND()*150"),
			styled("A14", "Total Expenses", boldFormat),
			styled("B14", "=SUM(B10:B13)", shaded("#f5c6cb")),

			styled("A16", "Net Income", CellFormat{Bold: true, FontSize: 14}),
			styled("B16", "=B7-B14", CellFormat{Bold: true, FontSize: 14, Background: "#fff3cd"}),
			styled("A17", "Status", boldFormat),
			styled("B17", `=IF(B16>0,"Surplus","Deficit")`, boldFormat),
		},
	}
}

// BusinessTemplate is a quarterly revenue table per product
func BusinessTemplate() Template {
	header := shaded("#bbdefb")
	total := shaded("#fff3e0")

	entries := []TemplateEntry{
		styled("A1", "Business Analytics", CellFormat{Bold: true, FontSize: 16, Background: "#e3f2fd"}),
		styled("A2", `=CONCATENATE("Real-time Data - ",NOW())`, stampFormat),
	}
	for i, title := range []string{"Product", "Q1", "Q2", "Q3", "Q4", "Total", "Average", "Growth %"} {
		entries = append(entries, styled(fmt.Sprintf("%c3", 'A'+i), title, header))
	}

	products := []string{"Web Platform", "Office Suite", "Tab System", "Analytics Engine", "Dashboard"}
	for i, product := range products {
		row := i + 4
		base := 50000 + i*10000
		entries = append(entries,
			label(fmt.Sprintf("A%d", row), product),
			label(fmt.Sprintf("B%d", row), fmt.Sprintf("=%d+RAND()*20000", base)),
			label(fmt.Sprintf("C%d", row), fmt.Sprintf("=%d*1.1+RAND()*25000", base)),
			label(fmt.Sprintf("D%d", row), fmt.Sprintf("=%d*1.2+RAND()*30000", base)),
			label(fmt.Sprintf("E%d", row), fmt.Sprintf("=%d*1.3+RAND()*35000", base)),
			label(fmt.Sprintf("F%d", row), fmt.Sprintf("=SUM(B%d:E%d)", row, row)),
			label(fmt.Sprintf("G%d", row), fmt.Sprintf("=AVERAGE(B%d:E%d)", row, row)),
			label(fmt.Sprintf("H%d", row), fmt.Sprintf("=(E%d-B%d)/B%d*100", row, row, row)),
		)
	}

	last := 3 + len(products)
	totalRow := last + 1
	entries = append(entries, styled(fmt.Sprintf("A%d", totalRow), "TOTAL", total))
	for col := 'B'; col <= 'H'; col++ {
		fn := "SUM"
		if col >= 'G' {
			fn = "AVERAGE"
		}
		entries = append(entries, styled(fmt.Sprintf("%c%d", col, totalRow), fmt.Sprintf("=%s(%c4:%c%d)", fn, col, col, last), total))
	}

	metrics := totalRow + 2
	entries = append(entries,
		styled(fmt.Sprintf("A%d", metrics), "Performance Metrics", CellFormat{Bold: true, FontSize: 14, Background: "#e8f5e8"}),
		styled(fmt.Sprintf("A%d", metrics+1), "Best Product Total", boldFormat),
		label(fmt.Sprintf("B%d", metrics+1), fmt.Sprintf("=MAX(F4:F%d)", last)),
		styled(fmt.Sprintf("A%d", metrics+2), "Total Revenue", boldFormat),
		styled(fmt.Sprintf("B%d", metrics+2), fmt.Sprintf("=F%d", totalRow), CellFormat{Background: "#d4edda"}),
		styled(fmt.Sprintf("A%d", metrics+3), "Market Status", boldFormat),
		label(fmt.Sprintf("B%d", metrics+3), fmt.Sprintf(`=IF(H%d>15,"Excellent","Good")`, totalRow)),
	)

	return Template{Name: "Business", Entries: entries}
}

var templates = map[string]func() Template{
	"budget":   BudgetTemplate,
	"business": BusinessTemplate,
}

// Templates lists the built-in templates by key
func Templates() map[string]Template {
	result := make(map[string]Template, len(templates))
	for key, build := range templates {
		result[key] = build()
	}
	return result
}

// TemplateKeys returns the template keys, sorted
func TemplateKeys() []string {
	return slices.Sorted(maps.Keys(templates))
}

// LookupTemplate finds a template by key
func LookupTemplate(key string) (Template, error) {
	build, ok := templates[key]
	if !ok {
		return Template{}, NewApplicationError(NotFound, fmt.Sprintf("unknown template %q, want one of %v", key, TemplateKeys()))
	}
	return build(), nil
}
