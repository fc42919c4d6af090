package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	syncTimeout = 2 * time.Minute
	// Processed message ids are kept in memory only; the set is reset once
	// it grows past this size.
	maxSeenMessages = 5000
)

// Message is the part of a mail the status sync looks at.
type Message struct {
	ID      string
	Subject string
	From    string
	Body    string
}

type MailSource interface {
	Recent(ctx context.Context) ([]Message, error)
}

type EmailClassifier interface {
	ClassifyEmail(ctx context.Context, company, subject, body string) (*EmailVerdict, error)
}

// StatusUpdater is the slice of the application store the sync writes to.
type StatusUpdater interface {
	Active(ctx context.Context) ([]models.Application, error)
	Update(ctx context.Context, id uint, req *dtos.ApplicationUpdateRequest) (*models.Application, error)
}

// EmailService moves applications forward based on recruiter mail. It only
// ever changes status through the coalescing update, so it never touches
// goal counters.
type EmailService struct {
	Source  MailSource
	Apps    StatusUpdater
	LLM     EmailClassifier
	Matcher *MatcherService
	Log     *logrus.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewEmailService(source MailSource, apps StatusUpdater, llm EmailClassifier, matcher *MatcherService, log *logrus.Logger) *EmailService {
	return &EmailService{
		Source:  source,
		Apps:    apps,
		LLM:     llm,
		Matcher: matcher,
		Log:     log,
		seen:    make(map[string]struct{}),
	}
}

// Schedule registers the sync on c using a cron spec such as "@every 15m".
func (s *EmailService) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if _, err := s.SyncEmails(ctx); err != nil {
			s.Log.WithError(err).Error("Email sync failed")
		}
	})
}

// SyncEmails runs one sync cycle and returns how many applications changed.
func (s *EmailService) SyncEmails(ctx context.Context) (int, error) {
	s.Log.Debug("Email sync: starting cycle")

	messages, err := s.Source.Recent(ctx)
	if err != nil {
		return 0, fmt.Errorf("list mail: %w", err)
	}
	fresh := s.unseen(messages)
	if len(fresh) == 0 {
		return 0, nil
	}

	apps, err := s.Apps.Active(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, msg := range fresh {
		changed, err := s.processMessage(ctx, msg, apps)
		if err != nil {
			// Leave it unmarked so the next cycle retries.
			s.Log.WithError(err).WithField("message_id", msg.ID).Warn("Email sync: message skipped")
			continue
		}
		s.markSeen(msg.ID)
		if changed {
			updated++
		}
	}
	s.Log.WithFields(logrus.Fields{"messages": len(fresh), "updated": updated}).Info("Email sync: cycle done")
	return updated, nil
}

func (s *EmailService) processMessage(ctx context.Context, msg Message, apps []models.Application) (bool, error) {
	log := s.Log.WithFields(logrus.Fields{"message_id": msg.ID, "subject": msg.Subject})

	app := s.Matcher.FindApplication(msg.Subject, msg.From, msg.Body, apps)
	if app == nil {
		log.Debug("Email sync: no tracked application matches")
		return false, nil
	}

	verdict, err := s.LLM.ClassifyEmail(ctx, app.CompanyName, msg.Subject, msg.Body)
	if err != nil {
		return false, err
	}
	status, ok := verdict.Change()
	if !ok || status == app.Status {
		log.WithField("verdict", verdict.Status).Debug("Email sync: no status change")
		return false, nil
	}

	if _, err := s.Apps.Update(ctx, app.ID, &dtos.ApplicationUpdateRequest{Status: &status}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"from":           app.Status,
		"to":             status,
		"summary":        verdict.Summary,
	}).Info("Email sync: application status updated")
	app.Status = status
	return true, nil
}

func (s *EmailService) unseen(messages []Message) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range messages {
		if _, ok := s.seen[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func (s *EmailService) markSeen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) >= maxSeenMessages {
		s.seen = make(map[string]struct{})
	}
	s.seen[id] = struct{}{}
}

// GmailSource reads recent recruiter mail from the authenticated account.
type GmailSource struct {
	Client *gmail.Service
	Query  string
	Max    int64
	Log    *logrus.Logger
}

func NewGmailSource(client *gmail.Service, log *logrus.Logger) *GmailSource {
	return &GmailSource{
		Client: client,
		Log:    log,
		Query:  "subject:(application OR interview OR update OR offer OR status OR next steps) newer_than:2d",
		Max:    50,
	}
}

func (g *GmailSource) Recent(ctx context.Context) ([]Message, error) {
	var resp *gmail.ListMessagesResponse
	err := retry(ctx, 3, time.Second, func() error {
		var e error
		resp, e = g.Client.Users.Messages.List("me").Q(g.Query).MaxResults(g.Max).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, h := range resp.Messages {
		var msg *gmail.Message
		err := retry(ctx, 2, 500*time.Millisecond, func() error {
			var e error
			msg, e = g.Client.Users.Messages.Get("me", h.Id).Format("full").Context(ctx).Do()
			return e
		})
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err != nil {
			g.Log.WithError(err).WithField("message_id", h.Id).Warn("Email sync: could not read message")
			continue
		}
		out = append(out, toMessage(msg))
	}
	return out, nil
}

// retry runs f up to attempts times with exponential backoff. Client errors
// other than rate limiting are not retried, and waiting stops with ctx.
func retry(ctx context.Context, attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code >= 400 && gErr.Code < 500 && gErr.Code != 429 {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			sleep *= 2
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func toMessage(msg *gmail.Message) Message {
	out := Message{ID: msg.Id}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			out.Subject = h.Value
		case "From":
			out.From = h.Value
		}
	}
	out.Body = messageBody(msg.Payload)
	return out
}

// messageBody prefers text/plain parts over text/html ones.
func messageBody(p *gmail.MessagePart) string {
	if p.Body != nil && p.Body.Data != "" && len(p.Parts) == 0 {
		return decodeBody(p.Body.Data)
	}
	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range p.Parts {
			if part.MimeType == mime && part.Body != nil && part.Body.Data != "" {
				return decodeBody(part.Body.Data)
			}
		}
	}
	for _, part := range p.Parts {
		if body := messageBody(part); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) string {
	if d, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(d)
	}
	d, _ := base64.RawURLEncoding.DecodeString(data)
	return string(d)
}
