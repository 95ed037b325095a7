package email

import (
	"fmt"
	"strings"

	"github.com/example/storefront/internal/domain/order"
)

// formatCents renders an amount in minor units as dollars.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// BuildOrderConfirmationBody builds the HTML body for an order confirmation.
func BuildOrderConfirmationBody(o *order.Order) string {
	var rows strings.Builder
	for _, item := range o.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			name,
			item.Quantity,
			formatCents(item.Price),
			formatCents(item.Price*int64(item.Quantity)),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thank you for your order, %s</h1>

	<p style="color: #666;">Order number: <span style="font-family: monospace;">%s</span></p>

	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 8px; text-align: left;">Item</th>
				<th style="padding: 8px; text-align: center;">Qty</th>
				<th style="padding: 8px; text-align: right;">Unit price</th>
				<th style="padding: 8px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>
			%s
		</tbody>
	</table>

	<p style="text-align: right; font-size: 18px;"><strong>Total: %s</strong></p>

	<p style="font-size: 12px; color: #999;">We will let you know as soon as your order ships.</p>
</body>
</html>`,
		o.CustomerName,
		o.ID,
		rows.String(),
		formatCents(o.Total),
	)
}
