package types

import (
	"encoding/json"
	"time"

	"github.com/yeisme/fileparser/pkg/internal/model"
)

// 分页默认值.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// UploadResponse 上传被接受.
type UploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// FileItem 列表中的一项，不含内容.
type FileItem struct {
	ID               string          `json:"id"`
	Filename         string          `json:"filename"`
	OriginalFilename string          `json:"original_filename"`
	FileType         string          `json:"file_type"`
	FileSize         int64           `json:"file_size"`
	Status           string          `json:"status"`
	Progress         int             `json:"progress"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Metadata         json.RawMessage `json:"file_metadata,omitempty" swaggertype:"object"`
	ProcessingTime   float64         `json:"processing_time"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

// NewFileItem 由模型构建.
func NewFileItem(f *model.FileRecord) FileItem {
	return FileItem{
		ID:               f.ID,
		Filename:         f.Filename,
		OriginalFilename: f.OriginalFilename,
		FileType:         f.FileType,
		FileSize:         f.FileSize,
		Status:           string(f.Status),
		Progress:         f.Progress,
		ErrorMessage:     f.ErrorMessage,
		Metadata:         rawJSON(f.Metadata),
		ProcessingTime:   f.ProcessingTime,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
		ProcessedAt:      f.ProcessedAt,
	}
}

// ListFilesRequest 列表查询.
type ListFilesRequest struct {
	FileType string `form:"file_type" rule:"omitempty,oneof=csv excel pdf json text"`
	Status   string `form:"status"    rule:"omitempty,oneof=uploading processing ready failed"`
	Limit    int    `form:"limit"     rule:"omitempty,min=1,max=100"`
	Offset   int    `form:"offset"    rule:"omitempty,min=0"`
}

// SearchFilesRequest 文件名搜索，q 与 query 等价.
type SearchFilesRequest struct {
	Q      string `form:"q"      rule:"omitempty,max=255"`
	Query  string `form:"query"  rule:"omitempty,max=255"`
	Limit  int    `form:"limit"  rule:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" rule:"omitempty,min=0"`
}

// Term 取实际搜索词.
func (r *SearchFilesRequest) Term() string {
	if r.Q != "" {
		return r.Q
	}

	return r.Query
}

// FileListResponse 分页结果.
type FileListResponse struct {
	Files  []FileItem `json:"files"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ProgressResponse 进度快照.
type ProgressResponse struct {
	FileID         string  `json:"file_id"`
	Status         string  `json:"status"`
	Progress       int     `json:"progress"`
	ProcessingTime float64 `json:"processing_time"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// NewProgressResponse 由模型构建.
func NewProgressResponse(f *model.FileRecord) ProgressResponse {
	return ProgressResponse{
		FileID:         f.ID,
		Status:         string(f.Status),
		Progress:       f.Progress,
		ProcessingTime: f.ProcessingTime,
		ErrorMessage:   f.ErrorMessage,
	}
}

// ContentResponse 解析结果.
type ContentResponse struct {
	FileID         string          `json:"file_id"`
	Filename       string          `json:"filename"`
	FileType       string          `json:"file_type"`
	Status         string          `json:"status"`
	Content        json.RawMessage `json:"content"                 swaggertype:"object"`
	Metadata       json.RawMessage `json:"file_metadata,omitempty" swaggertype:"object"`
	ProcessingTime float64         `json:"processing_time"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// NewContentResponse 由模型构建.
func NewContentResponse(f *model.FileRecord) ContentResponse {
	return ContentResponse{
		FileID:         f.ID,
		Filename:       f.OriginalFilename,
		FileType:       f.FileType,
		Status:         string(f.Status),
		Content:        rawJSON(f.Content),
		Metadata:       rawJSON(f.Metadata),
		ProcessingTime: f.ProcessingTime,
		ProcessedAt:    f.ProcessedAt,
	}
}

// NotReadyResponse 内容尚不可用.
type NotReadyResponse struct {
	Error string `json:"error"`
	ProgressResponse
}

// StatsResponse 文件统计.
type StatsResponse struct {
	TotalFiles            int64            `json:"total_files"`
	TotalSize             int64            `json:"total_size"`
	StatusCounts          map[string]int64 `json:"status_counts"`
	FileTypes             map[string]int64 `json:"file_types"`
	TotalProcessingTime   float64          `json:"total_processing_time"`
	AverageProcessingTime float64          `json:"average_processing_time"`
}

// DeleteResponse 删除结果.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}

	return json.RawMessage(b)
}
