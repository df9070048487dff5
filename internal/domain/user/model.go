package user

import "time"

type User struct {
	ID        int
	Email     string
	Password  string // хэш bcrypt
	CreatedAt time.Time
}
