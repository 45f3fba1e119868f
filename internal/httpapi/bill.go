package httpapi

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

var billTmpl = template.Must(template.New("bill").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Bill #{{.ID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    @media print { .no-print { display: none; } }
  </style>
</head>
<body>
  <h2>Abdullah Tech Shop</h2>
  <p>Bill #{{.ID}} &middot; {{.SoldAt.Format "2006-01-02 03:04 PM"}}</p>
  <p>Customer: {{.Customer.Name}}{{with .Customer.Phone}} &middot; {{.}}{{end}}{{with .Customer.Address}}<br />{{.}}{{end}}</p>

  <table>
    <thead><tr><th>Product</th><th>SKU</th><th>Qty</th><th>Price</th><th>Subtotal</th></tr></thead>
    <tbody>{{range .Items}}<tr><td>{{.ProductName}}</td><td>{{.SKU}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .PriceEach}}</td><td class="num">{{money .Subtotal}}</td></tr>{{end}}</tbody>
    <tfoot><tr><th colspan="4" style="text-align:right;">Total</th><th class="num">{{money .TotalAmount}}</th></tr></tfoot>
  </table>
  <button class="no-print" onclick="window.print()">Print</button>
</body>
</html>
`))

// renderBill renders a printable bill. Customer fields are escaped by html/template.
func renderBill(sale domain.Sale) ([]byte, error) {
	var buf bytes.Buffer
	if err := billTmpl.Execute(&buf, sale); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
