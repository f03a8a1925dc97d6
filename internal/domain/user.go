package domain

// Role определяет уровень доступа пользователя.
type Role string

const (
	// RoleUser — обычный покупатель.
	RoleUser Role = "user"
	// RolePremium — покупатель с премиальным тарифом, участвует в скидочных программах.
	RolePremium Role = "premium"
	// RoleAdmin — администратор каталога, видит мягко удалённые товары.
	RoleAdmin Role = "admin"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePremium, RoleAdmin:
		return true
	default:
		return false
	}
}

// User — участник операций каталога и заказов.
// Роль определяет и право на скидки, и видимость каталога.
type User struct {
	ID   int64
	Name string
	Role Role
}

// IsPremium сообщает, действует ли для пользователя премиальная скидка.
func (u User) IsPremium() bool {
	return u.Role == RolePremium
}

// IsPrivileged сообщает, видит ли пользователь мягко удалённые товары.
func (u User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}
