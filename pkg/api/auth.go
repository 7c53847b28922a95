package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"` // username пользователя
	Password string `json:"password"` // пароль в открытом виде (только поверх TLS)
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"` // username пользователя
	Password string `json:"password"` // пароль
}

// TokenResponse is returned by both the login and the refresh endpoints.
// Expiry instants are unix seconds.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`       // JWT access token
	RefreshToken     string `json:"refresh_token"`      // opaque refresh token
	AccessExpiresAt  int64  `json:"access_expires_at"`  // истечение access token (unix)
	RefreshExpiresAt int64  `json:"refresh_expires_at"` // истечение refresh token (unix)
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Fields  map[string]string `json:"fields,omitempty"`  // ошибки валидации по полям
	Error   string            `json:"error"`             // описание ошибки
	Message string            `json:"message,omitempty"` // дополнительное сообщение
}
