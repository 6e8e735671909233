// internal/app/templates.go
package app

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"subscription_notifier/internal/domain/notification"
)

// Content is the short title/message pair stored on a notification event.
type Content struct {
	Title   string
	Message string
}

// RenderContext carries what the email body can show besides the stored text.
type RenderContext struct {
	Title     string
	Message   string
	ToolName  string
	Cost      float64
	Currency  string
	DateLabel string // next billing or trial end date, empty when unknown
	BaseURL   string
}

// Rendered is a complete email body.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// FormatDate renders a calendar date the way notification text shows it.
func FormatDate(d time.Time) string {
	return d.UTC().Format("Jan 2, 2006")
}

// When frames a day offset as "today", "tomorrow" or "in N days".
func When(daysAhead int) string {
	switch {
	case daysAhead == 0:
		return "today"
	case daysAhead == 1:
		return "tomorrow"
	case daysAhead == -1:
		return "yesterday"
	case daysAhead < 0:
		return fmt.Sprintf("%d days ago", -daysAhead)
	default:
		return fmt.Sprintf("in %d days", daysAhead)
	}
}

// ContentFor derives the stored title and message for a notification.
func ContentFor(t notification.Type, toolName, dateLabel string, daysAhead int) (Content, error) {
	when := When(daysAhead)
	switch t {
	case notification.TypeRenewalReminder:
		return Content{
			Title:   fmt.Sprintf("%s renews %s", toolName, when),
			Message: fmt.Sprintf("Your %s subscription renews %s (%s). Review it before you are charged.", toolName, when, dateLabel),
		}, nil
	case notification.TypeTrialExpiring:
		return Content{
			Title:   fmt.Sprintf("%s trial ends %s", toolName, when),
			Message: fmt.Sprintf("Your free trial of %s ends %s (%s). Decide whether to keep it before it converts to a paid plan.", toolName, when, dateLabel),
		}, nil
	case notification.TypeUnusedTool:
		return Content{
			Title:   fmt.Sprintf("You haven't used %s lately", toolName),
			Message: fmt.Sprintf("%s looks unused. Consider cancelling it before the next charge on %s.", toolName, dateLabel),
		}, nil
	case notification.TypeCostAlert:
		return Content{
			Title:   fmt.Sprintf("Spending alert for %s", toolName),
			Message: fmt.Sprintf("The cost of %s has gone up. The next charge is due %s (%s).", toolName, when, dateLabel),
		}, nil
	}
	return Content{}, fmt.Errorf("content for %q: %w", string(t), notification.ErrUnknownType)
}

func subjectPrefix(t notification.Type) (string, error) {
	switch t {
	case notification.TypeRenewalReminder:
		return "Renewal reminder", nil
	case notification.TypeTrialExpiring:
		return "Trial ending", nil
	case notification.TypeUnusedTool:
		return "Unused subscription", nil
	case notification.TypeCostAlert:
		return "Cost alert", nil
	}
	return "", fmt.Errorf("subject for %q: %w", string(t), notification.ErrUnknownType)
}

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8" />
	<title>{{.Subject}}</title>
	<style>
		body { font-family: Arial, sans-serif; background-color: #f6f8fa; padding: 30px; }
		.container { max-width: 600px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; }
		.header { background: #1f2937; color: white; padding: 20px; font-size: 20px; font-weight: bold; }
		.body { padding: 25px; color: #333; line-height: 1.6; }
		.details td { padding: 4px 12px 4px 0; }
		a.button { display: inline-block; background: #2563eb; color: white; padding: 10px 20px; border-radius: 5px; text-decoration: none; }
	</style>
</head>
<body>
<div class="container">
	<div class="header">{{.Title}}</div>
	<div class="body">
		<p>{{.Message}}</p>
		{{- if .HasDetails}}
		<table class="details">
			{{- if .ToolName}}<tr><td>Tool</td><td>{{.ToolName}}</td></tr>{{end}}
			{{- if .Cost}}<tr><td>Cost</td><td>{{.Cost}}</td></tr>{{end}}
			{{- if .DateLabel}}<tr><td>Date</td><td>{{.DateLabel}}</td></tr>{{end}}
		</table>
		{{- end}}
		{{- if .Link}}
		<p><a class="button" href="{{.Link}}">Manage subscriptions</a></p>
		{{- end}}
	</div>
</div>
</body>
</html>
`))

// RenderContent builds the delivery subject and bodies for a stored notification.
func RenderContent(t notification.Type, rc RenderContext) (Rendered, error) {
	prefix, err := subjectPrefix(t)
	if err != nil {
		return Rendered{}, err
	}
	subject := fmt.Sprintf("%s: %s", prefix, rc.Title)

	cost := ""
	if rc.Cost > 0 {
		cost = strings.TrimSpace(fmt.Sprintf("%.2f %s", rc.Cost, rc.Currency))
	}
	link := ""
	if rc.BaseURL != "" {
		link = strings.TrimRight(rc.BaseURL, "/") + "/dashboard/subscriptions"
	}

	var text strings.Builder
	text.WriteString(rc.Message)
	text.WriteString("\n")
	if rc.ToolName != "" || cost != "" || rc.DateLabel != "" {
		text.WriteString("\n")
		if rc.ToolName != "" {
			fmt.Fprintf(&text, "Tool: %s\n", rc.ToolName)
		}
		if cost != "" {
			fmt.Fprintf(&text, "Cost: %s\n", cost)
		}
		if rc.DateLabel != "" {
			fmt.Fprintf(&text, "Date: %s\n", rc.DateLabel)
		}
	}
	if link != "" {
		fmt.Fprintf(&text, "\nManage your subscriptions: %s\n", link)
	}

	var html bytes.Buffer
	err = emailLayout.Execute(&html, map[string]any{
		"Subject":    subject,
		"Title":      rc.Title,
		"Message":    rc.Message,
		"ToolName":   rc.ToolName,
		"Cost":       cost,
		"DateLabel":  rc.DateLabel,
		"Link":       link,
		"HasDetails": rc.ToolName != "" || cost != "" || rc.DateLabel != "",
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("render html for %q: %w", string(t), err)
	}

	return Rendered{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
