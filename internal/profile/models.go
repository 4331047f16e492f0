package profile

import "time"

// Profile is the stored provider configuration of one caller. Secret columns
// hold sealed values, never plaintext.
type Profile struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             uint64    `gorm:"uniqueIndex;not null" json:"-"`
	AnthropicAPIKey    string    `gorm:"column:anthropic_api_key;type:text" json:"-"`
	AWSAccessKeyID     string    `gorm:"column:aws_access_key_id;type:text" json:"-"`
	AWSSecretAccessKey string    `gorm:"column:aws_secret_access_key;type:text" json:"-"`
	AWSRegion          string    `gorm:"column:aws_region;type:varchar(32)" json:"aws_region"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "user_profiles" }
