package models

type Role string

const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleAuthority Role = "authority"
	RoleParent    Role = "parent"
)

// User - запись справочника пользователей. Таблицей владеет основное приложение,
// чат её только читает.
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"size:100;uniqueIndex" json:"username"`
	FullName string `gorm:"size:255" json:"full_name"`
	Role     Role   `gorm:"size:20" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}

type UserTokens struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64  `gorm:"index:user_token_idx,unique" json:"user_id"`
	Token  string `gorm:"size:255;index:user_token_idx,unique" json:"token"`
}

func (UserTokens) TableName() string {
	return "user_tokens"
}
