package model

type UserModel struct {
	ID   string `gorm:"column:id;type:uuid;primaryKey"`
	Name string `gorm:"column:name;type:varchar(255);not null"`
}

func (UserModel) TableName() string {
	return "users"
}
