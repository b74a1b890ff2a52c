// Package model 定义持久化实体.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// FileStatus 文件处理状态.
type FileStatus string

const (
	StatusUploading  FileStatus = "uploading"
	StatusProcessing FileStatus = "processing"
	StatusReady      FileStatus = "ready"
	StatusFailed     FileStatus = "failed"
)

// Statuses 全部状态，按生命周期排列.
var Statuses = []FileStatus{StatusUploading, StatusProcessing, StatusReady, StatusFailed}

// Terminal ready 与 failed 之后不再变化.
func (s FileStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Valid 是否为已知状态.
func (s FileStatus) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}

	return false
}

// FileRecord 每个上传文件一行.
// status/progress 只由进度模拟器写入，直至进入终态.
type FileRecord struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID uint   `gorm:"not null;index:idx_owner_status,priority:1" json:"owner_id"`
	// Filename 临时区中的文件名 {id}_{original}
	Filename         string     `gorm:"size:300;not null"                             json:"filename"`
	OriginalFilename string     `gorm:"size:255;not null;index"                       json:"original_filename"`
	FileType         string     `gorm:"size:16;not null;index"                        json:"file_type"`
	FileSize         int64      `gorm:"not null"                                      json:"file_size"`
	Status           FileStatus `gorm:"size:16;not null;index:idx_owner_status,priority:2" json:"status"`
	Progress         int        `gorm:"not null;default:0"                            json:"progress"`
	// Content 解析后的内容（JSON）
	Content datatypes.JSON `json:"content,omitempty"`
	// Metadata 与格式相关的结构信息（JSON）
	Metadata       datatypes.JSON `gorm:"column:file_metadata" json:"file_metadata,omitempty"`
	ErrorMessage   string         `gorm:"type:text"            json:"error_message,omitempty"`
	ProcessingTime float64        `gorm:"not null;default:0"   json:"processing_time"`
	// ObjectKey 归档到对象存储的键，未归档时为空
	ObjectKey   string     `gorm:"size:512" json:"-"`
	CreatedAt   time.Time  `gorm:"index"    json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName 表名.
func (FileRecord) TableName() string {
	return "file_records"
}
