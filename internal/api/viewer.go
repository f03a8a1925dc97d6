package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Заголовки с личностью вызывающего. Их проставляет доверенный
// внешний слой (gateway), сам сервис токены не проверяет.
const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
	headerUserName = "X-User-Name"
)

type contextKey string

const viewerKey contextKey = "viewer"

// ViewerFromContext возвращает пользователя, извлечённого middleware из заголовков.
// Если middleware не отработал, возвращается анонимный покупатель.
func ViewerFromContext(ctx context.Context) domain.User {
	if user, ok := ctx.Value(viewerKey).(domain.User); ok {
		return user
	}
	return domain.User{Role: domain.RoleUser}
}

// ViewerMiddleware извлекает пользователя из заголовков запроса.
// Пустая роль трактуется как обычный покупатель, неизвестная — отклоняется.
func ViewerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := domain.User{Role: domain.RoleUser}

		if rawID := strings.TrimSpace(r.Header.Get(headerUserID)); rawID != "" {
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil || id <= 0 {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, Error("invalid "+headerUserID+" header"))
				return
			}
			user.ID = id
		}

		if rawRole := strings.TrimSpace(r.Header.Get(headerUserRole)); rawRole != "" {
			role := domain.Role(strings.ToLower(rawRole))
			if !role.Valid() {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, Error("invalid "+headerUserRole+" header"))
				return
			}
			user.Role = role
		}

		user.Name = strings.TrimSpace(r.Header.Get(headerUserName))

		ctx := context.WithValue(r.Context(), viewerKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пропускает запрос только от администратора каталога.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := ViewerFromContext(r.Context())
		if viewer.Role != domain.RoleAdmin {
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, Error("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity пропускает только запросы с заполненным X-User-Id:
// заказы всегда принадлежат конкретному пользователю.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := ViewerFromContext(r.Context())
		if viewer.ID <= 0 {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, Error(headerUserID+" header is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
