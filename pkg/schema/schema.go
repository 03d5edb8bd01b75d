// Package schema holds the GORM models shared by the chat processes. The
// api-service owns users, rooms and memberships; the persist worker writes
// messages; the gateway only reads memberships.
package schema

import (
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/pkg/database"
)

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// UserModel is the GORM model for users table.
type UserModel struct {
	ID           string               `gorm:"type:varchar(36);primaryKey"`
	Username     string               `gorm:"type:varchar(50);uniqueIndex;not null"`
	PasswordHash string               `gorm:"type:varchar(255);not null"`
	Roles        database.StringArray `gorm:"type:text"`
	CreatedAt    time.Time            `gorm:"autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// RoomModel is the GORM model for rooms table.
type RoomModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	IsPrivate    bool      `gorm:"not null;default:false"`
	PasswordHash string    `gorm:"type:varchar(255)"`
	CreatedBy    string    `gorm:"type:varchar(36);index;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// RoomMemberModel is the GORM model for room_members table.
type RoomMemberModel struct {
	RoomID   string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(36);primaryKey;index"`
	Role     string    `gorm:"type:varchar(20);not null;default:member"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomMemberModel.
func (RoomMemberModel) TableName() string {
	return "room_members"
}

// MessageModel is the GORM model for messages table. MessageID is the
// gateway-assigned id; the unique index turns a redelivered record into a
// no-op insert.
type MessageModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	RoomID    string    `gorm:"type:varchar(36);index:idx_messages_room_created,priority:1;not null"`
	UserID    string    `gorm:"type:varchar(36);not null"`
	Username  string    `gorm:"type:varchar(50);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2;not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return database.AutoMigrate(db, &UserModel{}, &RoomModel{}, &RoomMemberModel{}, &MessageModel{})
}
