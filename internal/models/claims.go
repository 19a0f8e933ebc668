package models

// Claims - проверенные данные из токена владельца.
type Claims struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
