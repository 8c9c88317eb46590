package assistant

import (
	"fmt"
	"strings"

	"github.com/invoicegen/platform/internal/domain/invoices"
)

func parseInvoicePrompt(text string) string {
	return `You are an expert invoice data extraction AI. Analyze the following text and extract the relevant
information to create an invoice. The output MUST be a valid JSON object with this structure:
{
  "clientName": "string",
  "email": "string (if available)",
  "address": "string (if available)",
  "items": [
    { "name": "string", "quantity": "number", "unitPrice": "number" }
  ]
}

Here is the text to parse:
--- TEXT START ---
` + text + `
--- TEXT END ---

Extract the data and provide only the JSON object.`
}

func reminderPrompt(inv invoices.Invoice) string {
	from := inv.BillFrom.BusinessName
	if from == "" {
		from = "our business"
	}
	return fmt.Sprintf(`You are a professional and polite accounting assistant. Write a friendly reminder email to a client
about an overdue or upcoming invoice payment.

Use the following details to personalize the email:
- Client Name: %s
- Invoice Number: %s
- Amount Due: %s
- Due Date: %s
- Sent by: %s

The tone should be friendly but clear. Keep it concise. Start the email with "Subject:".`,
		inv.BillTo.ClientName,
		inv.InvoiceNumber,
		inv.Total.String(),
		inv.DueDate.Format("2006-01-02"),
		from,
	)
}

func insightsPrompt(sum invoices.Summary) string {
	var recent strings.Builder
	for _, inv := range sum.Recent {
		fmt.Fprintf(&recent, "- Invoice #%s for %s, status %s, due %s\n",
			inv.InvoiceNumber, inv.Total.String(), inv.Status, inv.DueDate.Format("2006-01-02"))
	}

	return fmt.Sprintf(`You are a friendly and insightful financial analyst for a small business owner.
Based on the following summary of their invoice data, provide 2-3 concise and actionable insights.
Each insight should be a short string in a JSON array.
The insights should be encouraging and helpful. Do not just repeat the data.

Data Summary:
- Total number of invoices: %d
- Total paid invoices: %d
- Total unpaid/pending invoices: %d
- Overdue invoices: %d
- Total revenue from paid invoices: %s
- Total outstanding amount: %s
- Recent invoices (up to 5):
%s
Return your response as a valid JSON array of strings.`,
		sum.TotalInvoices,
		sum.PaidInvoices,
		sum.UnpaidInvoices,
		sum.OverdueInvoices,
		sum.TotalPaid.String(),
		sum.TotalOutstanding.String(),
		recent.String(),
	)
}
