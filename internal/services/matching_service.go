package services

import (
	"net/mail"
	"strings"

	"github.com/justsurfingit/ats-job-tracker/internal/models"
)

// MatcherService links a recruiter email to one of the tracked applications.
type MatcherService struct{}

func NewMatcherService() *MatcherService {
	return &MatcherService{}
}

// FindApplication returns the application the email most likely refers to,
// or nil. apps must be ordered newest first; among several applications to
// the same company the one whose job title appears in the mail wins,
// otherwise the most recent one.
func (s *MatcherService) FindApplication(subject, rawSender, body string, apps []models.Application) *models.Application {
	senderName, senderAddr := parseSender(rawSender)
	subjectLower := strings.ToLower(subject)
	bodyLower := strings.ToLower(body)

	domain := ""
	if parts := strings.Split(senderAddr, "@"); len(parts) == 2 {
		domain = parts[1]
	}

	var candidates []*models.Application
	for i := range apps {
		company := strings.ToLower(strings.TrimSpace(apps[i].CompanyName))
		// Very short names like "X" would match almost every mail.
		if len(company) < 3 {
			continue
		}
		compact := strings.ReplaceAll(company, " ", "")

		switch {
		case strings.Contains(subjectLower, company):
		case senderName != "" && strings.Contains(senderName, company):
		case domain != "" && strings.Contains(domain, compact):
		default:
			continue
		}
		candidates = append(candidates, &apps[i])
	}

	if len(candidates) == 0 {
		return nil
	}
	for _, app := range candidates {
		if app.JobTitle == nil || *app.JobTitle == "" {
			continue
		}
		title := strings.ToLower(*app.JobTitle)
		if strings.Contains(subjectLower, title) || strings.Contains(bodyLower, title) {
			return app
		}
	}
	return candidates[0]
}

// parseSender splits "Stripe Recruiting <jobs@stripe.com>" into its
// lower-cased display name and address.
func parseSender(raw string) (name, addr string) {
	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return "", strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.ToLower(parsed.Name), strings.ToLower(parsed.Address)
}
