package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makosite/internal/config"
	"makosite/internal/contact"
)

func queuedMessage() contact.QueuedMessage {
	return contact.QueuedMessage{
		Payload: contact.Payload{
			Name:    "Ada <script>",
			Email:   "ada@example.com",
			Subject: "Partnership",
			Message: "Hello there",
		},
		ID:        "0190a1b2-0000-7000-8000-000000000001",
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:    contact.StatusPending,
	}
}

func TestNotifyQueued(t *testing.T) {
	n := NewNotifier(enabledConfig(), nil)
	sent := captureSend(n.service, nil)

	require.NoError(t, n.NotifyQueued(context.Background(), queuedMessage()))
	require.Len(t, *sent, 1)

	raw := render(t, (*sent)[0])
	assert.Contains(t, raw, "To: contact@mako-ai.org")
	assert.Contains(t, raw, "Reply-To:")
	assert.Contains(t, raw, "ada@example.com")
	assert.Contains(t, raw, "Contact message queued: Partnership")
}

func TestNotifyQueued_DisabledOrNoAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"smtp disabled", &config.Config{ContactFallbackEmail: "contact@mako-ai.org"}},
		{"no fallback address", func() *config.Config { c := enabledConfig(); c.ContactFallbackEmail = ""; return c }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(tt.cfg, nil)
			sent := captureSend(n.service, nil)
			require.NoError(t, n.NotifyQueued(context.Background(), queuedMessage()))
			assert.Empty(t, *sent)
		})
	}
}

func TestMessageQueuedTemplate(t *testing.T) {
	tmpl := NewTemplates(enabledConfig())
	subject, htmlBody, textBody := tmpl.MessageQueued(queuedMessage())

	assert.Equal(t, "[MAKO] Contact message queued: Partnership", subject)
	assert.Contains(t, htmlBody, "Ada &lt;script&gt;", "HTML body escapes visitor input")
	assert.NotContains(t, htmlBody, "<script>")
	assert.Contains(t, textBody, "Ada <script>")
	assert.Contains(t, textBody, "Queue id: 0190a1b2-0000-7000-8000-000000000001")
	assert.True(t, strings.HasSuffix(textBody, "\n"))
}

func TestMessageQueuedTemplate_EmptySubject(t *testing.T) {
	msg := queuedMessage()
	msg.Subject = ""

	subject, _, _ := NewTemplates(enabledConfig()).MessageQueued(msg)
	assert.Equal(t, "[MAKO] Contact message queued: (no subject)", subject)
}
