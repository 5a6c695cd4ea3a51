// utils/email.go
package utils

import (
	"fmt"
	"log"
	"net/url"

	"go-farmmarket/models"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends a single email
type Mailer interface {
	SendEmail(toEmail, subject, htmlContent string) error
}

// EmailService handles sending emails using Postmark or SendGrid. With no
// provider configured the mail is only logged.
type EmailService struct {
	provider string
	sender   string
	postmark *postmark.Client
	sendgrid *sendgrid.Client
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(cfg *Config) (*EmailService, error) {
	es := &EmailService{provider: cfg.EmailProvider, sender: cfg.EmailSender}
	switch cfg.EmailProvider {
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set in environment variables")
		}
		es.postmark = postmark.NewClient(cfg.PostmarkToken, "")
	case "sendgrid":
		if cfg.SendgridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set in environment variables")
		}
		es.sendgrid = sendgrid.NewSendClient(cfg.SendgridKey)
	case "":
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
	return es, nil
}

// SendEmail sends a basic email to the given recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	switch {
	case es.postmark != nil:
		_, err := es.postmark.SendEmail(postmark.Email{
			From:     es.sender,
			To:       toEmail,
			Subject:  subject,
			HtmlBody: htmlContent,
			TextBody: htmlContent,
		})
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	case es.sendgrid != nil:
		from := mail.NewEmail("Farm Market", es.sender)
		to := mail.NewEmail("", toEmail)
		resp, err := es.sendgrid.Send(mail.NewSingleEmail(from, subject, to, htmlContent, htmlContent))
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("failed to send email: sendgrid status %d", resp.StatusCode)
		}
	default:
		log.Printf("email (not sent, no provider) to=%s subject=%q", toEmail, subject)
		return nil
	}

	log.Printf("Email sent to %s via %s", toEmail, es.provider)
	return nil
}

// VerificationEmail composes the mail sent after registration. It welcomes
// the user and carries the email verification link.
func VerificationEmail(user *models.User, baseURL string) (string, string) {
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", baseURL, url.QueryEscape(user.VerificationToken))
	subject := "Welcome to Farm Market, please verify your email"
	body := fmt.Sprintf(
		"<strong>Hello %s,</strong><br><br>Your %s account is ready. Please verify your email by clicking on the following link: <a href=\"%s\">Verify Email</a>",
		user.Name, user.Role, link,
	)
	return subject, body
}

// OrderStatusEmail composes the mail sent to a buyer when an order changes status
func OrderStatusEmail(name string, order *models.Order) (string, string) {
	subject := fmt.Sprintf("Order %s is now %s", order.OrderRef, order.Status)
	body := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Your order (Ref: %s) is now <strong>%s</strong>.<br><br>Total Amount: <strong>%.2f</strong><br>Payment Method: <strong>%s</strong>",
		name, order.OrderRef, order.Status, order.TotalAmount, order.PaymentMethod,
	)
	return subject, body
}

// NewOrderEmail composes the mail sent to a farmer when an order is placed
func NewOrderEmail(name string, order *models.Order) (string, string) {
	subject := fmt.Sprintf("New order %s", order.OrderRef)
	body := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>You received a new order (Ref: %s) with %d item(s) worth <strong>%.2f</strong>.",
		name, order.OrderRef, len(order.Items), order.TotalAmount,
	)
	return subject, body
}
