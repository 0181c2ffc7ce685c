package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// UserRole описывает роль пользователя.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// ParseRole приводит строку к роли. Неизвестные значения считаются обычным пользователем.
func ParseRole(raw string) UserRole {
	if UserRole(strings.ToLower(strings.TrimSpace(raw))) == UserRoleAdmin {
		return UserRoleAdmin
	}
	return UserRoleUser
}

// Session — аутентифицированный участник запроса.
type Session struct {
	UserID uuid.UUID
	Role   UserRole
}

// IsAdmin сообщает, есть ли у сессии права администратора.
func (s Session) IsAdmin() bool {
	return s.Role == UserRoleAdmin
}

// CanModify сообщает, может ли сессия изменять запись владельца ownerID.
func (s Session) CanModify(ownerID uuid.UUID) bool {
	return s.IsAdmin() || s.UserID == ownerID
}

type sessionKey struct{}

// WithSession кладёт сессию в контекст.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom достаёт сессию из контекста.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
