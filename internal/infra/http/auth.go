package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

// ErrUnauthorized — токен отсутствует или недействителен.
var ErrUnauthorized = errors.New("требуется авторизация")

// Claims описывает содержимое токена провайдера идентификации.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator проверяет bearer-токены и собирает сессию запроса.
type Authenticator struct {
	secret   []byte
	issuer   string
	accounts domain.AccountRepo
	log      zerolog.Logger
}

// NewAuthenticator создаёт проверку токенов. Пустой issuer не проверяется.
func NewAuthenticator(secret, issuer string, accounts domain.AccountRepo, log zerolog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, accounts: accounts, log: log}
}

// Parse проверяет подпись и срок действия токена и возвращает id пользователя и имя.
func (a *Authenticator) Parse(raw string) (uuid.UUID, string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return uuid.Nil, "", fmt.Errorf("%w: чужой издатель %q", ErrUnauthorized, claims.Issuer)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: sub не UUID", ErrUnauthorized)
	}
	return id, strings.TrimSpace(claims.Username), nil
}

// Middleware пускает только запросы с действительным токеном. Роль берётся из БД.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
			return
		}
		userID, username, err := a.Parse(raw)
		if err != nil {
			a.log.Debug().Err(err).Str("request_id", RequestID(r)).Msg("auth: токен отклонён")
			WriteError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
			return
		}
		ctx := r.Context()
		if err := a.accounts.EnsureProfile(ctx, userID, username); err != nil {
			a.log.Error().Err(err).Str("user_id", userID.String()).Msg("auth: не удалось сохранить профиль")
			WriteError(w, http.StatusInternalServerError, "internal", "внутренняя ошибка")
			return
		}
		role, err := a.accounts.RoleOf(ctx, userID)
		if err != nil {
			a.log.Error().Err(err).Str("user_id", userID.String()).Msg("auth: не удалось получить роль")
			WriteError(w, http.StatusInternalServerError, "internal", "внутренняя ошибка")
			return
		}
		session := domain.Session{UserID: userID, Role: role}
		next.ServeHTTP(w, r.WithContext(domain.WithSession(ctx, session)))
	})
}

// RequireAdmin пропускает только администраторов.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := domain.SessionFrom(r.Context())
		if !ok {
			WriteError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
			return
		}
		if !session.IsAdmin() {
			WriteError(w, http.StatusForbidden, "forbidden", domain.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken читает токен из заголовка Authorization; EventSource заголовки
// не передаёт, поэтому допускается и параметр access_token.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
