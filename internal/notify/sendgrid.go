// Package notify sends order confirmation email through SendGrid.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"text/template"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
)

type ReceiptMailer struct {
	apiKey string
	from   string
}

func NewReceiptMailer(apiKey, from string) *ReceiptMailer {
	return &ReceiptMailer{apiKey: apiKey, from: from}
}

var receiptTemplate = template.Must(template.New("receipt").Parse(
	`Hi {{.Customer.FullName}},

Thanks for your order {{.OrderID}}.

{{range .Lines}}{{.Quantity}} x {{.Name}}  {{.Subtotal}}
{{end}}
Total: {{.Total}}
Payment reference: {{.PaymentID}} ({{.Provider}})

Shipping to:
{{.Customer.Address}}
{{.Customer.City}}, {{.Customer.State}} {{.Customer.ZipCode}}
{{.Customer.Country}}
`))

type receiptLine struct {
	Name     string
	Quantity int
	Subtotal string
}

// RenderReceipt builds the plain-text body. Receipt amounts are already in
// the order currency, so only the symbol is applied.
func RenderReceipt(r models.Receipt) (string, error) {
	symbol := pricing.Lookup(r.Currency).Symbol

	data := struct {
		models.Receipt
		Lines []receiptLine
		Total string
	}{Receipt: r, Total: symbol + r.TotalAmount.StringFixed(2)}
	for _, it := range r.Items {
		data.Lines = append(data.Lines, receiptLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			Subtotal: symbol + it.Subtotal.StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

func (m *ReceiptMailer) SendReceipt(ctx context.Context, r models.Receipt) error {
	if m.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if m.from == "" {
		return fmt.Errorf("from address is empty")
	}
	if r.Customer.Email == "" {
		return fmt.Errorf("receipt %s has no customer email", r.OrderID)
	}

	body, err := RenderReceipt(r)
	if err != nil {
		return err
	}

	subject := "Your order " + r.OrderID
	message := mail.NewSingleEmail(
		mail.NewEmail("Storefront", m.from),
		subject,
		mail.NewEmail(r.Customer.FullName, r.Customer.Email),
		body,
		fmt.Sprintf("<pre>%s</pre>", template.HTMLEscapeString(body)),
	)

	response, err := sendgrid.NewSendClient(m.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	log.Printf("[sendgrid] receipt sent: status=%d order=%s", response.StatusCode, r.OrderID)
	return nil
}
