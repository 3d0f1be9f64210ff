// Package mailer delivers transactional email through sendgrid.
package mailer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wkbook/phonebook/shared"
)

// Message is the assembled email returned to the caller; no message state is
// shared across sends.
type Message struct {
	To        string
	From      string
	Subject   string
	PlainText string
	HTML      string
}

type ClientWrapper struct {
	client     *sendgrid.Client
	config     shared.SendgridConfig
	appBaseURL string
	testMode   bool
}

// NewClient builds a sendgrid-backed mailer. With testMode set, messages are
// assembled but never sent.
func NewClient(config shared.SendgridConfig, appBaseURL string, testMode bool) *ClientWrapper {
	return &ClientWrapper{
		client:     sendgrid.NewSendClient(config.ApiKey),
		config:     config,
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
		testMode:   testMode,
	}
}

// SendVerificationEmail mails the account-verification link for token to the
// given address & returns the assembled message.
func (cw *ClientWrapper) SendVerificationEmail(to, token string) (*Message, error) {
	verificationLink := fmt.Sprintf("%v/users/verify/%v", cw.appBaseURL, token)

	msg := &Message{
		To:        to,
		From:      cw.config.Sender,
		Subject:   "Verify Your Email",
		PlainText: fmt.Sprintf("Click the following link to verify your email: %v", verificationLink),
		HTML: fmt.Sprintf(
			`<p>Click the following link to verify your email: <a href="%v">Verify Email</a></p>`,
			verificationLink),
	}

	if cw.testMode {
		return msg, nil
	}

	email := mail.NewSingleEmail(
		mail.NewEmail("Phonebook", msg.From),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.PlainText,
		msg.HTML,
	)

	resp, err := cw.client.Send(email)
	if err != nil {
		return nil, errors.Wrap(err, "unable to send verification email")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("sendgrid rejected verification email: status=%v body=%v", resp.StatusCode, resp.Body)
	}

	return msg, nil
}
