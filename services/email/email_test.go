package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adribv/edutool/core"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Edutool",
		DefaultFromEmail: mail.Address{Name: "Edutool", Address: "noreply@edutool.test"},
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Tina", Address: "tina@example.com"}},
			Subject:      "Your permissions were granted",
			TemplateName: "access_changed",
			TemplateData: map[string]interface{}{
				"StaffName":  "Tina",
				"Kind":       "permissions",
				"Action":     "granted",
				"AssignedBy": "admin",
				"Lines":      []string{"students: View Access"},
			},
		},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@example.com"}}, BodyStr: "plain"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, "Hello Tina")
	assert.Contains(t, sent[0].TextContent, "granted by admin")
	assert.Contains(t, sent[0].TextContent, "students: View Access")
	assert.Contains(t, sent[0].HTMLContent, "<li>students: View Access</li>")
	assert.True(t, strings.HasSuffix(sent[0].TextContent, "please do not reply."))
	assert.Equal(t, "plain", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())
	out, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Address: "a@example.com"}},
		Cc:          []mail.Address{{Address: "b@example.com"}},
		Subject:     "Hi",
		TextContent: "text body",
		HTMLContent: "<p>html body</p>",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: [Edutool] Hi\r\n")
	assert.Contains(t, out, "CC: <b@example.com>\r\n")
	assert.Contains(t, out, "text body")
	assert.Contains(t, out, "<p>html body</p>")
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), nil).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Tina", Address: "tina@example.com"}},
		Subject:     "Hi",
		TextContent: "text",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Edutool] Hi", m.Personalizations[0].Subject)
	assert.Equal(t, "tina@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
