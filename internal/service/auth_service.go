package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobmail/pkg/logger"
	"jobmail/pkg/util"
)

type AuthService struct {
	resolver  MailFetcher
	users     UserStore
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewAuthService(resolver MailFetcher, users UserStore, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		resolver:  resolver,
		users:     users,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger,
	}
}

// LinkResult /auth-server 的返回
type LinkResult struct {
	OwnerID      string
	SessionToken string
	Created      bool
}

// Link 用 Google access token 解析出用户 ID，不存在则创建，并签发 session token
func (s *AuthService) Link(ctx context.Context, token string) (*LinkResult, error) {
	ownerID, err := s.resolver.ResolveOwner(ctx, token)
	if err != nil {
		return nil, err
	}

	created, err := s.CheckUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	session, err := util.GenerateJWT(ownerID, s.jwtSecret, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &LinkResult{OwnerID: ownerID, SessionToken: session, Created: created}, nil
}

// CheckUser 确保用户存在，返回是否新建
func (s *AuthService) CheckUser(ctx context.Context, ownerID string) (bool, error) {
	created, err := s.users.Ensure(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if created {
		logger.WithTrace(ctx, s.logger).Info("User created", zap.String("owner_id", ownerID))
	}
	return created, nil
}

// VerifySession 校验 session token 并返回 owner ID
func (s *AuthService) VerifySession(token string) (string, error) {
	return util.ParseJWT(token, s.jwtSecret)
}
