package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// IAlertMailer notifies the curator out-of-band when the bot hits a storage
// failure it could only report inside the chat.
type IAlertMailer interface {
	SendStorageAlert(operation string, cause error) error
}

type alertMailer struct {
	dialer       *gomail.Dialer
	senderEmail  string
	senderName   string
	curatorEmail string
}

// NewAlertMailer wires SMTP delivery. curatorEmail empty disables alerts.
func NewAlertMailer(host string, port int, username, password, senderName, curatorEmail string) IAlertMailer {
	return &alertMailer{
		dialer:       gomail.NewDialer(host, port, username, password),
		senderEmail:  username,
		senderName:   senderName,
		curatorEmail: curatorEmail,
	}
}

func (s *alertMailer) SendStorageAlert(operation string, cause error) error {
	if s.curatorEmail == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", s.curatorEmail)
	m.SetHeader("Subject", "Trivia bot: archive save failed")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Archive storage failure</h2>
			<p>The bot failed to persist an archive change.</p>
			<p><b>Operation:</b> %s</p>
			<p><b>Cause:</b> %v</p>
			<p>The in-memory archive is unchanged; the curator was told the save failed.</p>
		</div>
	`, operation, cause)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send storage alert: %v\n", err)
		return err
	}
	return nil
}
