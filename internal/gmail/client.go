// Package gmail 通过 Gmail / People API 拉取用户最近的邮件
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"jobmail/internal/model"
	"jobmail/internal/normalize"
	"jobmail/pkg/config"
	"jobmail/pkg/logger"
	"jobmail/pkg/metrics"
)

const (
	user = "me"

	DefaultMaxResults       = 50
	MaxResultsCap           = 500
	DefaultFetchConcurrency = 8
	defaultTimeout          = 30 * time.Second

	noRecipient = "No recipient"
	noSender    = "No sender"
)

// Client 每次调用都用调用方传入的 access token 构造服务，不保存凭证
type Client struct {
	maxResults  int64
	concurrency int
	timeout     time.Duration
	opts        []option.ClientOption
	logger      *zap.Logger
	now         func() time.Time
}

// NewClient extra 用于替换 endpoint 或 HTTP client
func NewClient(cfg config.GmailConfig, logger *zap.Logger, extra ...option.ClientOption) *Client {
	c := &Client{
		maxResults:  cfg.MaxResults,
		concurrency: cfg.FetchConcurrency,
		timeout:     cfg.Timeout,
		opts:        extra,
		logger:      logger,
		now:         time.Now,
	}
	if c.maxResults <= 0 {
		c.maxResults = DefaultMaxResults
	}
	if c.maxResults > MaxResultsCap {
		c.maxResults = MaxResultsCap
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultFetchConcurrency
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

func (c *Client) clientOptions(token string) ([]option.ClientOption, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: access token is required", model.ErrCredential)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...), nil
}

func (c *Client) gmailService(ctx context.Context, token string) (*gmailapi.Service, error) {
	opts, err := c.clientOptions(token)
	if err != nil {
		return nil, err
	}
	srv, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create Gmail service: %w", model.ErrFetch, err)
	}
	return srv, nil
}

// ResolveOwner 返回 people/me 资源名中 "people/" 之后的 ID
func (c *Client) ResolveOwner(ctx context.Context, token string) (string, error) {
	opts, err := c.clientOptions(token)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	srv, err := people.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: unable to create People service: %w", model.ErrFetch, err)
	}

	person, err := srv.People.Get("people/me").PersonFields("names,emailAddresses").Context(ctx).Do()
	if err != nil {
		return "", classify("fetch user profile", err)
	}

	_, id, ok := strings.Cut(person.ResourceName, "/")
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no resource name in profile response", model.ErrFetch)
	}
	return id, nil
}

// FetchSince 拉取 since 所在日期之后的邮件，最多 maxResults 封
func (c *Client) FetchSince(ctx context.Context, token string, since time.Time) ([]model.RawMessage, error) {
	query := "after:" + since.Format("2006/01/02")
	return c.fetch(ctx, token, query, c.maxResults)
}

// FetchYesterday 默认窗口：昨天之后的邮件
func (c *Client) FetchYesterday(ctx context.Context, token string) ([]model.RawMessage, error) {
	return c.FetchSince(ctx, token, c.now().AddDate(0, 0, -1))
}

// FetchLatest 拉取最新的 limit 封邮件。limit 不受 maxResults 限制，只受单页上限 MaxResultsCap 约束
func (c *Client) FetchLatest(ctx context.Context, token string, limit int64) ([]model.RawMessage, error) {
	switch {
	case limit <= 0:
		limit = c.maxResults
	case limit > MaxResultsCap:
		limit = MaxResultsCap
	}
	return c.fetch(ctx, token, "", limit)
}

func (c *Client) fetch(ctx context.Context, token, query string, limit int64) ([]model.RawMessage, error) {
	start := time.Now()
	defer func() { metrics.RecordBatchDuration("gmail_fetch", time.Since(start)) }()

	srv, err := c.gmailService(ctx, token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := srv.Users.Messages.List(user).MaxResults(limit).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	list, err := call.Do()
	if err != nil {
		return nil, classify("list messages", err)
	}
	if len(list.Messages) == 0 {
		logger.WithTrace(ctx, c.logger).Info("No emails found", zap.String("query", query))
		return []model.RawMessage{}, nil
	}

	msgs := make([]model.RawMessage, len(list.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, ref := range list.Messages {
		g.Go(func() error {
			full, err := srv.Users.Messages.Get(user, ref.Id).Format("full").Context(gctx).Do()
			if err != nil {
				return classify("get message "+ref.Id, err)
			}
			msgs[i] = toRawMessage(full)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, c.logger).Info("Fetched emails",
		zap.Int("count", len(msgs)),
		zap.String("query", query),
	)
	return msgs, nil
}

func toRawMessage(m *gmailapi.Message) model.RawMessage {
	raw := model.RawMessage{ID: m.Id, Recipient: noRecipient, Sender: noSender}
	if m.Payload == nil {
		return raw
	}
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "to":
			if h.Value != "" {
				raw.Recipient = h.Value
			}
		case "from":
			if h.Value != "" {
				raw.Sender = h.Value
			}
		}
	}
	raw.RawBody = normalize.BodyText(toPart(m.Payload))
	return raw
}

func toPart(p *gmailapi.MessagePart) normalize.Part {
	part := normalize.Part{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, sub := range p.Parts {
		if sub != nil {
			part.Parts = append(part.Parts, toPart(sub))
		}
	}
	return part
}

// classify 401/403 归为凭证错误，其余归为拉取错误
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %s: %w", model.ErrCredential, op, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrFetch, op, err)
}
