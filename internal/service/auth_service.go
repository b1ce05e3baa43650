package service

import (
	"crypto/subtle"
	"time"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/config"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// AuthService issues API tokens to the chat gateway.
type AuthService struct {
	tokenMgr   *auth.TokenManager
	clientID   string
	secretHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		tokenMgr:   tokens,
		clientID:   cfg.GatewayClientID,
		secretHash: cfg.GatewaySecretHash,
	}
}

// IssueGatewayToken exchanges the gateway's client credentials for a token.
func (s *AuthService) IssueGatewayToken(clientID, secret string) (string, time.Time, error) {
	if s.clientID == "" || s.secretHash == "" {
		return "", time.Time{}, apperrors.NewForbidden("gateway credentials are not configured")
	}
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) != 1 || !auth.VerifySecret(s.secretHash, secret) {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid client credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(clientID)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}
