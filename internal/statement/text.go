// Package statement renders account statements.
package statement

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"smartbanker/backend/internal/account/domain"
)

const currencySymbol = "₹"

const textLayout = `SmartBanker Account Statement

Account Holder: {{.Name}}
Username: {{.Username}}
Account Number: {{.AccountNumber}}
Bank: {{.Bank}}
Current Balance: {{money .Balance}}
Date: {{date .At}}

Transactions:
{{- if .Transactions}}
{{- range $i, $tx := .Transactions}}
{{inc $i}}. Type: {{kind $tx.Kind}} | Amount: {{money $tx.Amount}} | Date: {{datetime $tx.Time}}
{{- end}}
{{- else}}
No transactions recorded.
{{- end}}
`

// TextRenderer renders a projection as a plain-text statement, most recent transaction first.
type TextRenderer struct {
	tmpl     *template.Template
	location *time.Location
}

// NewTextRenderer returns a renderer that prints times in loc (UTC when nil).
func NewTextRenderer(loc *time.Location) *TextRenderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &TextRenderer{location: loc}
	r.tmpl = template.Must(template.New("statement").Funcs(template.FuncMap{
		"money":    func(d decimal.Decimal) string { return currencySymbol + d.StringFixed(2) },
		"date":     func(t time.Time) string { return t.In(r.location).Format("2006-01-02") },
		"datetime": func(t time.Time) string { return t.In(r.location).Format("2006-01-02 15:04:05") },
		"kind":     kindLabel,
		"inc":      func(i int) int { return i + 1 },
	}).Parse(textLayout))
	return r
}

type view struct {
	*domain.Projection
	At time.Time
}

// Render writes the statement for p as of at.
func (r *TextRenderer) Render(w io.Writer, p *domain.Projection, at time.Time) error {
	if p == nil {
		return fmt.Errorf("statement: nil account")
	}
	return r.tmpl.Execute(w, view{Projection: p, At: at})
}

// ContentType is the media type of rendered statements.
func (r *TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Filename is the download name for a statement of username generated at.
func (r *TextRenderer) Filename(username string, at time.Time) string {
	return fmt.Sprintf("%s_statement_%s.txt", username, at.In(r.location).Format("2006-01-02"))
}

func kindLabel(k domain.TransactionKind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
