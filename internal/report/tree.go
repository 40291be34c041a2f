package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/validation"
)

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeSpace  = "   "
)

// line is one rendered tree row before the amount column is aligned.
type line struct {
	content string
	amount  string
}

// Tree renders the budget as an indented tree. Chapters show their code,
// title and total; items show code, description, quantity, unit and price,
// with the line total right-aligned.
func Tree(b *budget.Budget) string {
	var lines []line
	for i, c := range b.Chapters {
		lines = appendChapter(lines, c, "", i == len(b.Chapters)-1)
	}
	if len(lines) == 0 {
		return StyleDim.Render("(empty budget)") + "\n"
	}

	width := 0
	for _, l := range lines {
		if w := lipgloss.Width(l.content); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for _, l := range lines {
		pad := width - lipgloss.Width(l.content)
		sb.WriteString(l.content + strings.Repeat(" ", pad) + "  " + l.amount + "\n")
	}
	sb.WriteString(strings.Repeat(" ", width) + "  " + StyleBold.Render(b.Total().StringFixed(2)) + "\n")
	return sb.String()
}

func appendChapter(lines []line, c *budget.Chapter, indent string, last bool) []line {
	connector, childIndent := treeBranch, indent+treePipe
	if last {
		connector, childIndent = treeCorner, indent+treeSpace
	}

	lines = append(lines, line{
		content: StyleDim.Render(indent+connector) + StyleBold.Render(c.Code) + " " + c.Title,
		amount:  StyleAmount.Render(c.Total().StringFixed(2)),
	})

	// Items come before subchapters, as in every writer.
	children := len(c.Items) + len(c.Subchapters)
	for i, item := range c.Items {
		prefix := treeBranch
		if i == children-1 {
			prefix = treeCorner
		}
		lines = append(lines, line{
			content: fmt.Sprintf("%s%s %s  %s",
				StyleDim.Render(childIndent+prefix),
				item.Code,
				item.Description,
				StyleDim.Render(fmt.Sprintf("%s %s x %s", item.Quantity.String(), item.Unit, item.Price.StringFixed(2))),
			),
			amount: item.Total().StringFixed(2),
		})
	}
	for i, sub := range c.Subchapters {
		lines = appendChapter(lines, sub, childIndent, len(c.Items)+i == children-1)
	}
	return lines
}

// Metadata renders the document descriptors as aligned key/value lines.
func Metadata(b *budget.Budget) string {
	m := b.Metadata
	pairs := [][2]string{
		{"Title", m.Title},
		{"Owner", m.Owner},
		{"Date", m.Date.Format("2006-01-02")},
		{"Version", m.Version},
		{"Currency", m.Currency},
		{"Chapters", fmt.Sprint(b.TotalChapters())},
		{"Items", fmt.Sprint(b.TotalItems())},
		{"Total", b.Total().StringFixed(2)},
	}

	var sb strings.Builder
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", StyleDim.Render(fmt.Sprintf("%-9s", p[0]+":")), p[1]))
	}
	return sb.String()
}

// Diagnostics renders one line per diagnostic, or nothing when there are
// none.
func Diagnostics(diags []bc3.Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(StyleWarning.Render("! ") + d.String() + "\n")
	}
	return sb.String()
}

// Validation renders the outcome of a validation run: a status line followed
// by every problem found.
func Validation(name string, result *validation.ValidationResult) string {
	var sb strings.Builder
	if result.IsValid {
		sb.WriteString(fmt.Sprintf("%s %s: valid (%d nodes", OK(), name, result.NodesValidated))
		if result.WarningCount > 0 {
			sb.WriteString(fmt.Sprintf(", %d warning(s)", result.WarningCount))
		}
		sb.WriteString(")\n")
	} else {
		sb.WriteString(fmt.Sprintf("%s %s: %d error(s), %d warning(s)\n", Failed(), name, result.ErrorCount, result.WarningCount))
	}

	for _, ve := range result.Errors {
		style := StyleWarning
		if ve.Severity == validation.SeverityError {
			style = StyleError
		}
		sb.WriteString("    " + style.Render(ve.Error()) + "\n")
	}
	return sb.String()
}
