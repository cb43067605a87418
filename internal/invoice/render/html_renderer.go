// Package render turns an issued invoice into printable HTML.
package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vintner/internal/invoice/domain"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.InvoiceNumber}}</title>
  <style>
    body { margin: 0; padding: 40px; font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; color: #1a1f36; }
    .card { max-width: 760px; margin: 0 auto; }
    .header { display: flex; justify-content: space-between; margin-bottom: 32px; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; font-weight: 600; }
    table { width: 100%; border-collapse: collapse; margin: 24px 0; }
    th { text-align: left; font-size: 11px; text-transform: uppercase; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 8px 0; }
    td { padding: 12px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; }
    .right { text-align: right; }
    .override { font-size: 11px; color: #697386; }
    .total { font-weight: 700; font-size: 16px; }
  </style>
</head>
<body>
  <div class="card">
    <div class="header">
      <div>
        <h1>{{.CompanyName}}</h1>
        <div class="label">Invoice number</div>
        <div>{{.Invoice.InvoiceNumber}}</div>
      </div>
      <div class="right">
        <div class="label">Delivery</div>
        <div>{{formatDate .Invoice.DeliveryDate}}</div>
        <div class="label">Issued</div>
        <div>{{formatDate .Invoice.IssuedAt}}</div>
        <div class="label">Due</div>
        <div>{{formatDate .Invoice.DueDate}}</div>
      </div>
    </div>

    <div class="label">Bill to</div>
    <div>
      <strong>{{.Customer.Name}}</strong>
      {{if .Customer.AccountNumber}}<br>Account {{.Customer.AccountNumber}}{{end}}
      {{if .Customer.IsTaxExempt}}<br>Tax exempt{{end}}
    </div>

    <table>
      <thead>
        <tr>
          <th>Item</th>
          <th class="right">Quantity</th>
          <th class="right">Unit price</th>
          <th class="right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Invoice.Items}}
        <tr>
          <td>{{.SKUCode}}{{if .PriceOverridden}}<div class="override">manual price</div>{{end}}</td>
          <td class="right">{{.QuantityLabel}}</td>
          <td class="right">{{formatMoney .UnitPrice $.Invoice.Currency}}</td>
          <td class="right">{{formatMoney .Amount $.Invoice.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="right">
      <div>Subtotal {{formatMoney .Invoice.Subtotal .Invoice.Currency}}</div>
      <div class="total">Total {{formatMoney .Invoice.Total .Invoice.Currency}}</div>
    </div>
  </div>
</body>
</html>
`

type RenderInput struct {
	CompanyName string
	Invoice     invoicedomain.Invoice
	Customer    customerdomain.Customer
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	if strings.TrimSpace(input.CompanyName) == "" {
		input.CompanyName = "Invoice"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return currency + " " + amount.StringFixed(2)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}
