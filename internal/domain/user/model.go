package user

import "time"

// User владелец данных синхронизации
type User struct {
	ID        int
	Login     string
	CreatedAt time.Time
}
