package email

import (
	"fmt"
	"html"
	"strings"

	"makosite/internal/config"
	"makosite/internal/contact"
)

// Templates provides email template generation.
type Templates struct {
	cfg *config.Config
}

// NewTemplates creates a new templates instance.
func NewTemplates(cfg *config.Config) *Templates {
	return &Templates{cfg: cfg}
}

// baseHTML wraps content in a consistent HTML email template.
func (t *Templates) baseHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .info-box { background: white; border: 1px solid #e5e7eb; border-radius: 6px; padding: 15px; margin: 15px 0; }
        .label { font-weight: 600; color: #374151; }
        .message { white-space: pre-wrap; }
        .footer { font-size: 12px; color: #6b7280; }
    </style>
</head>
<body>
    <h1>%s</h1>
    %s
    <p class="footer">Sent by %s &middot; <a href="%s">%s</a></p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), content,
		html.EscapeString(t.cfg.SiteTitle), t.cfg.BaseURL, html.EscapeString(t.cfg.BaseURL))
}

// MessageQueued generates the notice sent when a contact message could not be
// delivered and was stored locally.
func (t *Templates) MessageQueued(msg contact.QueuedMessage) (subject, htmlBody, textBody string) {
	topic := msg.Subject
	if topic == "" {
		topic = "(no subject)"
	}
	subject = fmt.Sprintf("[%s] Contact message queued: %s", t.cfg.SiteTitle, topic)

	company := msg.Company
	if company == "" {
		company = "-"
	}
	when := msg.Timestamp.UTC().Format("2006-01-02 15:04:05 MST")

	content := fmt.Sprintf(`
    <p>A contact message could not be delivered to the contact endpoint and is waiting in the local queue.</p>

    <div class="info-box">
        <p><span class="label">From:</span> %s &lt;%s&gt;</p>
        <p><span class="label">Company:</span> %s</p>
        <p><span class="label">Subject:</span> %s</p>
        <p><span class="label">Received:</span> %s</p>
        <p><span class="label">Queue id:</span> <code>%s</code></p>
    </div>

    <p class="message">%s</p>

    <p>Run <code>mako queue redeliver</code> once the endpoint is back.</p>`,
		html.EscapeString(msg.Name), html.EscapeString(msg.Email),
		html.EscapeString(company), html.EscapeString(topic), when,
		html.EscapeString(msg.ID), html.EscapeString(msg.Message))

	htmlBody = t.baseHTML("Contact message queued", content)

	var b strings.Builder
	b.WriteString("A contact message could not be delivered and is waiting in the local queue.\n\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", msg.Name, msg.Email)
	fmt.Fprintf(&b, "Company: %s\n", company)
	fmt.Fprintf(&b, "Subject: %s\n", topic)
	fmt.Fprintf(&b, "Received: %s\n", when)
	fmt.Fprintf(&b, "Queue id: %s\n\n", msg.ID)
	b.WriteString(msg.Message)
	b.WriteString("\n\nRun `mako queue redeliver` once the endpoint is back.\n")
	textBody = b.String()

	return subject, htmlBody, textBody
}
