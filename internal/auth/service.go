package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	xerrors "NoccStacks-Crew/internal/errors"
)

// Mode 表示认证模式。
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeToken    Mode = "token"
)

// TokenConfig 描述一个静态 API token。
type TokenConfig struct {
	Name        string
	Token       string
	TokenSHA256 string
	Permissions []string
}

// Config 描述认证服务。
type Config struct {
	Mode   string
	Tokens []TokenConfig
}

type tokenEntry struct {
	digest  []byte
	subject Subject
}

// Service 校验 Authorization 头。
type Service struct {
	mode   Mode
	tokens []tokenEntry
}

// NewService 根据配置构造认证服务。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(cfg.Mode)))
	switch mode {
	case "", ModeDisabled:
		return &Service{mode: ModeDisabled}, nil
	case ModeToken:
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的认证模式: %s", cfg.Mode))
	}

	s := &Service{mode: mode}
	for i, tc := range cfg.Tokens {
		digest, err := tokenDigest(tc)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("token #%d 配置无效", i+1),
				xerrors.WithMetadata("name", tc.Name))
		}
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("token-%d", i+1)
		}
		s.tokens = append(s.tokens, tokenEntry{
			digest:  digest,
			subject: Subject{Name: name, Permissions: append([]string(nil), tc.Permissions...)},
		})
	}
	if len(s.tokens) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "token 模式至少需要配置一个 token")
	}
	return s, nil
}

func tokenDigest(tc TokenConfig) ([]byte, error) {
	if hashed := strings.TrimSpace(tc.TokenSHA256); hashed != "" {
		digest, err := hex.DecodeString(hashed)
		if err != nil || len(digest) != sha256.Size {
			return nil, fmt.Errorf("token_sha256 必须是 64 位十六进制")
		}
		return digest, nil
	}
	if tc.Token == "" {
		return nil, fmt.Errorf("token 与 token_sha256 不能同时为空")
	}
	sum := sha256.Sum256([]byte(tc.Token))
	return sum[:], nil
}

// Mode 返回当前认证模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// Enabled 表示是否需要校验请求。
func (s *Service) Enabled() bool {
	return s.Mode() != ModeDisabled
}

// AuthenticateRequest 解析 "Bearer <token>" 并返回对应 Subject。
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))

	var match *tokenEntry
	for i := range s.tokens {
		if subtle.ConstantTimeCompare(sum[:], s.tokens[i].digest) == 1 {
			match = &s.tokens[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}
	subject := match.subject
	subject.Permissions = append([]string(nil), subject.Permissions...)
	subject.permissionsSet = nil
	subject.normalise()
	return &subject, nil
}
