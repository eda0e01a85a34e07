// Package middlewarectx содержит HTTP middleware портала: проверку токена
// сессии, проверку прав администратора, шлюз плана и ограничение частоты
// запросов. Личность пользователя передаётся дальше через контекст запроса.
package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// IdentityKey ключ личности владельца сессии в контексте.
const IdentityKey Key = "identity"

// WithIdentity кладёт личность в контекст.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom достаёт личность из контекста. ok == false, если запрос
// не прошёл Authenticate.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok && id.ID != ""
}
