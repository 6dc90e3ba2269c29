package models

import "time"

// User представляет пользователя на сервере синхронизации
type User struct {
	CreatedAt    time.Time  `json:"created_at"`    // время создания
	LastLogin    *time.Time `json:"last_login"`    // время последнего входа
	ID           string     `json:"id"`            // UUID пользователя
	Username     string     `json:"username"`      // уникальный username
	PasswordHash string     `json:"password_hash"` // bcrypt хеш пароля
}
