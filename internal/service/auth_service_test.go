package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/config"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

func TestIssueGatewayToken(t *testing.T) {
	hash, err := auth.HashSecret("gw-secret", bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager("jwt", 10)
	svc := NewAuthService(config.AuthConfig{GatewayClientID: "telegram", GatewaySecretHash: hash}, tokens)

	token, _, err := svc.IssueGatewayToken("telegram", "gw-secret")
	require.NoError(t, err)
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "telegram", claims.ClientID)

	_, _, err = svc.IssueGatewayToken("telegram", "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, _, err = svc.IssueGatewayToken("other", "gw-secret")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestIssueGatewayToken_NotConfigured(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{}, auth.NewTokenManager("jwt", 10))
	_, _, err := svc.IssueGatewayToken("", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
