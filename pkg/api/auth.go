package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	UserID      string `json:"user_id"`
	ExpiresIn   int64  `json:"expires_in"` // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
