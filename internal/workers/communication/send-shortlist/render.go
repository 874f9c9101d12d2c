// internal/workers/communication/send-shortlist/render.go
package sendshortlist

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"unipal-workers/internal/models"
)

type EmailMessage struct {
	Subject string
	Text    string
	HTML    string
}

var emailTemplate = template.Must(template.New("shortlist").Parse(`<html><body>
<p>Hello {{.Name}},</p>
<p>Here are your top university matches ({{.Progress}}% of your application is ready):</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>#</th><th>University</th><th>Country</th><th>Tuition (INR)</th><th>Match score</th></tr>
{{range .Rows}}<tr><td>{{.Rank}}</td><td><a href="{{.URL}}">{{.Name}}</a></td><td>{{.Country}}</td><td>{{.Fees}}</td><td>{{.Score}}</td></tr>
{{end}}</table>
{{if .Visa}}<p>Visa fees for {{.Visa.Country}}: {{.Visa.Fees}} {{.Visa.Currency}}</p>{{end}}
</body></html>`))

type emailRow struct {
	Rank    int
	Name    string
	URL     string
	Country string
	Fees    string
	Score   string
}

func rankOf(u models.University, i int) int {
	if u.Ranking != nil {
		return *u.Ranking
	}
	return i + 1
}

// RenderEmail builds the subject and both bodies of the shortlist email.
func RenderEmail(state models.ApplicationState) EmailMessage {
	name := "there"
	if state.StudentInfo != nil && strings.TrimSpace(state.StudentInfo.Name) != "" {
		name = strings.TrimSpace(state.StudentInfo.Name)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\nHere are your top university matches:\n\n", name)

	rows := make([]emailRow, 0, len(state.Universities))
	for i, u := range state.Universities {
		row := emailRow{
			Rank:    rankOf(u, i),
			Name:    u.Name,
			URL:     u.URL,
			Country: u.Country,
			Fees:    u.TuitionFees,
			Score:   fmt.Sprintf("%.0f", u.MatchScore),
		}
		rows = append(rows, row)
		fmt.Fprintf(&text, "%d. %s (%s) - tuition %s, score %s\n   %s\n", row.Rank, row.Name, row.Country, row.Fees, row.Score, row.URL)
	}
	if state.VisaInfo != nil {
		fmt.Fprintf(&text, "\nVisa fees for %s: %s %s\n", state.VisaInfo.Country, state.VisaInfo.Fees, state.VisaInfo.Currency)
	}
	fmt.Fprintf(&text, "\nApplication progress: %d%%\n", state.ProgressPercentage)

	var html bytes.Buffer
	_ = emailTemplate.Execute(&html, map[string]interface{}{
		"Name":     name,
		"Progress": state.ProgressPercentage,
		"Rows":     rows,
		"Visa":     state.VisaInfo,
	})

	return EmailMessage{
		Subject: fmt.Sprintf("Your university shortlist: %d matches", len(state.Universities)),
		Text:    text.String(),
		HTML:    html.String(),
	}
}

// RenderSMS builds a compact one-line shortlist.
func RenderSMS(state models.ApplicationState) string {
	parts := make([]string, 0, len(state.Universities))
	for i, u := range state.Universities {
		parts = append(parts, fmt.Sprintf("%d.%s (%s, %.0f)", rankOf(u, i), u.Name, u.Country, u.MatchScore))
	}
	return "UniPal shortlist: " + strings.Join(parts, "; ")
}
