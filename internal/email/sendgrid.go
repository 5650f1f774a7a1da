package email

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// send hands a rendered message to the configured sender. SendGrid accepts
// a message with 202 and nothing else.
func (s *Service) send(data EmailData, htmlContent, textContent string) error {
	from := mail.NewEmail(data.FromName, data.From)
	to := mail.NewEmail("", data.To)
	message := mail.NewSingleEmail(from, data.Subject, to, textContent, htmlContent)

	response, err := s.sender.Send(message)
	if err != nil {
		return fmt.Errorf("sending to %s via sendgrid: %w", data.To, err)
	}
	if response == nil {
		return fmt.Errorf("sending to %s via sendgrid: empty response", data.To)
	}
	if response.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid rejected message to %s: status %d: %s", data.To, response.StatusCode, response.Body)
	}

	return nil
}
