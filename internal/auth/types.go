package auth

import (
	"strings"

	xerrors "NoccStacks-Crew/internal/errors"
)

// 认证相关错误码。
const (
	CodeUnauthorized xerrors.Code = "UNAUTHORIZED"
	CodeForbidden    xerrors.Code = "FORBIDDEN"
)

func init() {
	xerrors.Register(CodeUnauthorized, xerrors.Attributes{Message: "unauthorized", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeForbidden, xerrors.Attributes{Message: "permission denied", Severity: xerrors.SeverityWarning})
}

// 常用错误。
var (
	ErrMissingToken     = xerrors.New(CodeUnauthorized, "missing bearer token")
	ErrInvalidToken     = xerrors.New(CodeUnauthorized, "invalid token")
	ErrPermissionDenied = xerrors.New(CodeForbidden, "permission denied")
)

// 权限名称。
const (
	PermissionRunsRead    = "runs:read"
	PermissionRunsWrite   = "runs:write"
	PermissionToolsInvoke = "tools:invoke"
	PermissionAll         = "*"
)

// Subject 是通过认证的调用方。
type Subject struct {
	Name        string
	Permissions []string

	permissionsSet map[string]struct{}
}

func (s *Subject) normalise() {
	if s == nil || s.permissionsSet != nil {
		return
	}
	s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
	for _, perm := range s.Permissions {
		s.permissionsSet[normalisePermission(perm)] = struct{}{}
	}
}

// HasPermission 判断是否拥有指定权限，"*" 视为拥有全部权限。
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	if _, ok := s.permissionsSet[PermissionAll]; ok {
		return true
	}
	_, ok := s.permissionsSet[normalisePermission(permission)]
	return ok
}

// Authorize 要求拥有全部给定权限。
func (s *Subject) Authorize(permissions ...string) error {
	for _, perm := range permissions {
		if !s.HasPermission(perm) {
			return xerrors.New(CodeForbidden, "permission denied", xerrors.WithMetadata("permission", perm))
		}
	}
	return nil
}

func normalisePermission(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
