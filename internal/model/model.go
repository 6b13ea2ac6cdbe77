package model

import (
	"time"
)

// User is an authenticated account.
type User struct {
	ID         int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname   string  `gorm:"type:varchar(100);not null" json:"nickname"`
	ProfileImg *string `gorm:"type:text" json:"profile_img,omitempty"`
	Provider   *string `gorm:"type:varchar(50)" json:"provider,omitempty"`
	ProviderID *string `gorm:"type:varchar(255)" json:"provider_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Room is one collaboration space: a chat channel plus a shared canvas.
type Room struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Files   []FileRecord   `gorm:"foreignKey:RoomID" json:"files,omitempty"`
	Strokes []StrokeRecord `gorm:"foreignKey:RoomID" json:"strokes,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// FileRecord is an uploaded attachment stored in object storage.
type FileRecord struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	RoomID      string    `gorm:"type:varchar(64);not null;index" json:"room_id"`
	UploaderID  string    `gorm:"type:varchar(255);not null" json:"uploader_id"`
	Filename    string    `gorm:"type:varchar(255);not null" json:"filename"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `gorm:"type:varchar(500);not null" json:"storage_key"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (FileRecord) TableName() string {
	return "file_records"
}

// StrokeRecord is one persisted canvas stroke. StrokeData holds the
// wire-format stroke JSON so replays reuse the broadcast schema.
type StrokeRecord struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID     string     `gorm:"type:varchar(64);not null;index:idx_room_created" json:"room_id"`
	StrokeID   string     `gorm:"type:varchar(100);not null" json:"stroke_id"`
	UserID     string     `gorm:"type:varchar(255)" json:"user_id"`
	StrokeData string     `gorm:"type:text;not null" json:"stroke_data"`
	IsDeleted  bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index:idx_room_created" json:"created_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (StrokeRecord) TableName() string {
	return "stroke_records"
}

// ChatRecord is one persisted chat line.
type ChatRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"type:varchar(64);not null;index" json:"room_id"`
	Username  string    `gorm:"type:varchar(100)" json:"username"`
	Content   string    `gorm:"type:text" json:"content"`
	Type      string    `gorm:"type:varchar(20);default:'TEXT'" json:"type"` // TEXT, FILE, SYSTEM
	FileURL   *string   `gorm:"type:text" json:"file_url,omitempty"`
	FileName  *string   `gorm:"type:varchar(255)" json:"file_name,omitempty"`
	FileType  *string   `gorm:"type:varchar(100)" json:"file_type,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (ChatRecord) TableName() string {
	return "chat_records"
}
