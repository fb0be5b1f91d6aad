package message

import (
	"strconv"
	"strings"

	"github.com/cobrex/cobrex/pkg/models"
)

// Render substitutes the debtor placeholders of a message template.
// Supported placeholders: {{name}}, {{debt_value}} and {{due_date}}.
// Unknown placeholders pass through untouched.
func Render(template string, snapshot *models.DebtorSnapshot) string {
	replacer := strings.NewReplacer(
		"{{name}}", snapshot.Name,
		"{{debt_value}}", strconv.FormatFloat(snapshot.DebtValue, 'f', 2, 64),
		"{{due_date}}", snapshot.DueDate.Format("2006-01-02"),
	)

	return replacer.Replace(template)
}
