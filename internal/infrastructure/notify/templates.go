package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

const footer = `<p style="margin-top:30px;color:#888;font-size:12px;">Diggin Café - Where every bite tells a story</p>`

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"lineTotal": func(price int64, qty int) int64 { return price * int64(qty) },
}).Parse(`
{{define "order"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">
<h1 style="color:#5d6b4b;margin-bottom:20px;">{{if .Admin}}New Order Received!{{else}}Order Confirmation{{end}}</h1>
<p>Hi {{if .Admin}}Admin{{else}}{{.N.UserName}}{{end}},</p>
<p>{{if .Admin}}A new order has been placed by {{.N.UserName}}.{{else}}Thank you for your order at Diggin Café!{{end}}</p>
<h3 style="margin-top:20px;">Order Details:</h3>
<table style="width:100%;border-collapse:collapse;">
<thead><tr style="background:#f5f5f5;"><th style="padding:8px;text-align:left;">Item</th><th style="padding:8px;">Qty</th><th style="padding:8px;">Price</th></tr></thead>
<tbody>{{range .N.Details.Items}}<tr><td style="padding:8px;border-bottom:1px solid #eee;">{{.Name}}</td><td style="padding:8px;border-bottom:1px solid #eee;">x{{.Quantity}}</td><td style="padding:8px;border-bottom:1px solid #eee;">₹{{lineTotal .Price .Quantity}}</td></tr>{{end}}</tbody>
<tfoot><tr><td colspan="2" style="padding:8px;font-weight:bold;">Total:</td><td style="padding:8px;font-weight:bold;">₹{{.N.Details.TotalPrice}}</td></tr></tfoot>
</table>
<p style="margin-top:20px;color:#666;">Status: Confirmed</p>
{{template "footer"}}</div>{{end}}

{{define "booking"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">
<h1 style="color:#5d6b4b;margin-bottom:20px;">{{if .Admin}}New Reservation Request!{{else}}Reservation Confirmation{{end}}</h1>
<p>Hi {{if .Admin}}Admin{{else}}{{.N.UserName}}{{end}},</p>
<p>{{if .Admin}}A new reservation has been requested by {{.N.UserName}}.{{else}}Thank you for your reservation request at Diggin Café!{{end}}</p>
<div style="background:#f9f9f9;padding:20px;border-radius:8px;margin:20px 0;">
<h3 style="margin-top:0;">Reservation Details:</h3>
<p><strong>Date:</strong> {{.N.Details.Date}}</p>
<p><strong>Time:</strong> {{.N.Details.Time}}</p>
<p><strong>Number of Guests:</strong> {{.N.Details.Guests}}</p>
{{with .N.Details.SpecialRequest}}<p><strong>Special Requests:</strong> {{.}}</p>{{end}}
</div>
<p style="color:#666;">{{if .Admin}}Please review and confirm this reservation.{{else}}Our team will confirm your reservation shortly via email or SMS.{{end}}</p>
{{template "footer"}}</div>{{end}}

{{define "inquiry"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">
<h1 style="color:#5d6b4b;margin-bottom:20px;">{{if .Admin}}New Inquiry Received!{{else}}We've Received Your Message{{end}}</h1>
<p>Hi {{if .Admin}}Admin{{else}}{{.N.UserName}}{{end}},</p>
<p>{{if .Admin}}A new inquiry has been submitted by {{.N.UserName}}.{{else}}Thank you for reaching out to Diggin Café!{{end}}</p>
<div style="background:#f9f9f9;padding:20px;border-radius:8px;margin:20px 0;">
<h3 style="margin-top:0;">Inquiry Details:</h3>
{{if .Admin}}<p><strong>From:</strong> {{.N.UserName}}</p>
<p><strong>Email:</strong> {{.N.UserEmail}}</p>{{end}}
{{with .N.Details.Phone}}<p><strong>Phone:</strong> {{.}}</p>{{end}}
<p><strong>Message:</strong></p>
<p style="white-space:pre-wrap;">{{.N.Details.Message}}</p>
</div>
<p style="color:#666;">{{if .Admin}}Please respond to this inquiry at your earliest convenience.{{else}}Our team will get back to you within 24 hours.{{end}}</p>
{{template "footer"}}</div>{{end}}

{{define "footer"}}` + footer + `{{end}}
`))

type view struct {
	N     Notification
	Admin bool
}

// Render builds the customer mail and, when adminEmail is set, the
// restaurant's copy.
func Render(n Notification, adminEmail string) ([]Email, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	userSubject, adminSubject := subjects(n)
	userHTML, err := execute(n, false)
	if err != nil {
		return nil, err
	}
	emails := []Email{{To: n.UserEmail, ToName: n.UserName, Subject: userSubject, HTML: userHTML}}

	if adminEmail != "" {
		adminHTML, err := execute(n, true)
		if err != nil {
			return nil, err
		}
		emails = append(emails, Email{To: adminEmail, ToName: "Admin", Subject: adminSubject, HTML: adminHTML})
	}
	return emails, nil
}

func subjects(n Notification) (user, admin string) {
	switch n.Type {
	case TypeOrder:
		return "Your Diggin Café Order Confirmation", "New Order from " + n.UserName
	case TypeBooking:
		return "Your Diggin Café Reservation Request", "New Reservation Request from " + n.UserName
	default:
		return "We've Received Your Inquiry - Diggin Café", "New Inquiry from " + n.UserName
	}
}

func execute(n Notification, admin bool) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(n.Type), view{N: n, Admin: admin}); err != nil {
		return "", fmt.Errorf("render %s mail: %w", n.Type, err)
	}
	return buf.String(), nil
}
