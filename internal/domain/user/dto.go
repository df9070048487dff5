package user

// BaseRequest - учетные данные для регистрации и входа
type BaseRequest struct {
	Email    string `json:"email" doc:"E-mail пользователя"`
	Password string `json:"password" doc:"Пароль"`
}
