package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wkbook/phonebook/shared"
)

func TestSendVerificationEmail(t *testing.T) {
	client := NewClient(
		shared.SendgridConfig{ApiKey: "SG.fake", Sender: "noreply@phonebook.dev"},
		"https://phonebook.dev/",
		true,
	)

	msg, err := client.SendVerificationEmail("stark@avengers.com", "token-123")
	assert.Nil(t, err)

	assert.Equal(t, "stark@avengers.com", msg.To)
	assert.Equal(t, "noreply@phonebook.dev", msg.From)
	assert.Equal(t, "Verify Your Email", msg.Subject)
	assert.Contains(t, msg.PlainText, "https://phonebook.dev/users/verify/token-123")
	assert.Contains(t, msg.HTML, `href="https://phonebook.dev/users/verify/token-123"`)
}

func TestMessagesDoNotShareState(t *testing.T) {
	client := NewClient(shared.SendgridConfig{Sender: "noreply@phonebook.dev"}, "https://phonebook.dev", true)

	first, err := client.SendVerificationEmail("stark@avengers.com", "token-1")
	assert.Nil(t, err)

	second, err := client.SendVerificationEmail("web@avengers.com", "token-2")
	assert.Nil(t, err)

	assert.Equal(t, "stark@avengers.com", first.To)
	assert.Contains(t, first.PlainText, "token-1")
	assert.Equal(t, "web@avengers.com", second.To)
	assert.Contains(t, second.PlainText, "token-2")
}
