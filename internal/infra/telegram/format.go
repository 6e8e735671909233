package telegram

import (
	"fmt"
	"strings"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/subscription"
)

const maxListedErrors = 5

// FormatCycleResult renders a run summary for the operator chat.
func FormatCycleResult(res app.CycleResult) string {
	var b strings.Builder
	writePhase(&b, "Detection", "created", res.Detection)
	writePhase(&b, "Sending", "sent", res.Sending)
	return strings.TrimRight(b.String(), "\n")
}

func writePhase(b *strings.Builder, name, verb string, r app.Result) {
	fmt.Fprintf(b, "%s: %d processed, %d %s, %d failed\n", name, r.Processed, r.Sent, verb, r.Failed)
	for i, e := range r.Errors {
		if i == maxListedErrors {
			fmt.Fprintf(b, "  ... and %d more\n", len(r.Errors)-maxListedErrors)
			break
		}
		fmt.Fprintf(b, "  - %s\n", e)
	}
}

// FormatOutlook renders the next billing or trial-end date of one subscription.
func FormatOutlook(o *app.SubscriptionOutlook) string {
	sub := o.Subscription
	label := "Next renewal"
	if sub.Status == subscription.StatusTrial {
		label = "Trial ends"
	}
	line := fmt.Sprintf("#%d %s (%s, %s)\n%s: %s (%s)",
		sub.ID, sub.ToolName, sub.Status, sub.BillingCycle,
		label, app.FormatDate(o.Next.Date), app.When(o.Next.DaysFromToday))
	if o.Next.IsOverdue && sub.Status != subscription.StatusTrial {
		line += "\nStored renewal date has passed; showing the rolled-forward date."
	}
	return line
}
