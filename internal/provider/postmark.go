package provider

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/shaiso/Relay/internal/domain"
)

// Коды ошибок Postmark, после которых повтор бессмысленен.
// https://postmarkapp.com/developer/api/overview#error-codes
var postmarkPermanentCodes = map[int64]bool{
	300: true, // invalid email request
	406: true, // inactive recipient
	422: true, // invalid JSON
}

// PostmarkConfig — конфигурация PostmarkSender.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	ReplyTo      string

	// BaseURL — для тестов, пусто = API Postmark.
	BaseURL string
}

// PostmarkSender отправляет email через Postmark.
type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkSender создаёт PostmarkSender.
func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrNotConfigured)
	}
	if !strings.Contains(cfg.From, "@") {
		return nil, fmt.Errorf("%w: sender address %q is invalid", ErrNotConfigured, cfg.From)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &PostmarkSender{
		client:  client,
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}, nil
}

// Send отправляет письмо. Тело шаблона считается HTML, если содержит
// теги, иначе экранируется и отправляется и как текст, и как HTML.
func (s *PostmarkSender) Send(ctx context.Context, job *domain.DeliveryJob) (string, error) {
	email := postmark.Email{
		From:       s.from,
		ReplyTo:    s.replyTo,
		To:         job.Recipient(),
		Subject:    job.Subject,
		Tag:        tagFromMetadata(job.Metadata),
		TrackOpens: true,
		Headers: []postmark.Header{
			{Name: "X-Request-ID", Value: job.RequestID},
		},
	}
	if looksLikeHTML(job.Body) {
		email.HTMLBody = job.Body
	} else {
		email.TextBody = job.Body
		email.HTMLBody = strings.ReplaceAll(html.EscapeString(job.Body), "\n", "<br>")
	}

	resp, err := s.client.SendEmail(ctx, email)
	if resp.ErrorCode != 0 {
		kind := ErrTransient
		if postmarkPermanentCodes[resp.ErrorCode] {
			kind = ErrPermanent
		}
		return "", errors.Join(kind, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	if err != nil {
		return "", errors.Join(ErrTransient, fmt.Errorf("postmark: %w", err))
	}

	return resp.MessageID, nil
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

func tagFromMetadata(md map[string]any) string {
	if tag, ok := md["tag"].(string); ok {
		return tag
	}
	return ""
}
