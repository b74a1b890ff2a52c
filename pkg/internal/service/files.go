package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/internal/types"
	"github.com/yeisme/fileparser/pkg/queue"
)

// Scheduler 接收待处理文件.
type Scheduler interface {
	Schedule(job processor.Job) error
}

// ObjectRemover 删除归档对象.
type ObjectRemover interface {
	RemoveArtifact(ctx context.Context, key string) error
}

// FileDeps FileService 依赖，Events/Objects/Stats 可为 nil.
type FileDeps struct {
	DB        *gorm.DB
	Processor Scheduler
	Events    *queue.Emitter
	Objects   ObjectRemover
	Stats     processor.StatsInvalidator
	Upload    configs.UploadConfig
	Logger    zerolog.Logger
}

// FileService 上传与按属主隔离的查询.
type FileService struct {
	deps FileDeps
}

// NewFileService 创建 FileService.
func NewFileService(deps FileDeps) *FileService {
	return &FileService{deps: deps}
}

// ownerScope 非管理员只能看到自己的记录.
func ownerScope(q *gorm.DB, id ctxPkg.Identity) *gorm.DB {
	if id.IsAdmin {
		return q
	}

	return q.Where("owner_id = ?", id.UserID)
}

func (s *FileService) invalidate(ctx context.Context, ownerID uint) {
	if s.deps.Stats != nil {
		s.deps.Stats.InvalidateStats(ctx, ownerID)
	}
}

// Get 返回调用者可见的记录，不存在或不属于调用者时返回 ErrNotFound.
func (s *FileService) Get(ctx context.Context, id ctxPkg.Identity, fileID string) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := ownerScope(s.deps.DB.WithContext(ctx), id).Where("id = ?", fileID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: File not found", ErrNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Progress 返回进度快照，不加载内容列.
func (s *FileService) Progress(ctx context.Context, id ctxPkg.Identity, fileID string) (types.ProgressResponse, error) {
	var rec model.FileRecord

	err := ownerScope(s.deps.DB.WithContext(ctx), id).
		Select("id", "status", "progress", "processing_time", "error_message").
		Where("id = ?", fileID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ProgressResponse{}, fmt.Errorf("%w: File not found", ErrNotFound)
	}

	if err != nil {
		return types.ProgressResponse{}, err
	}

	return types.NewProgressResponse(&rec), nil
}

// Content 返回已就绪的记录及其 ETag.
// 未就绪时同时返回记录与 ErrNotReady，调用方可据此输出状态快照.
func (s *FileService) Content(ctx context.Context, id ctxPkg.Identity, fileID string) (*model.FileRecord, string, error) {
	rec, err := s.Get(ctx, id, fileID)
	if err != nil {
		return nil, "", err
	}

	switch rec.Status {
	case model.StatusReady:
	case model.StatusFailed:
		return rec, "", fmt.Errorf("%w: File processing failed: %s", ErrNotReady, rec.ErrorMessage)
	default:
		return rec, "", fmt.Errorf("%w: File is still being processed (status %s)", ErrNotReady, rec.Status)
	}

	return rec, ETag(rec), nil
}

// ETag 由内容与元数据计算的强校验值.
func ETag(rec *model.FileRecord) string {
	h := xxhash.New()
	_, _ = h.Write(rec.Content)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(rec.Metadata)

	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}

// listColumns 列表与搜索不返回内容.
var listColumns = []string{
	"id", "owner_id", "filename", "original_filename", "file_type", "file_size", "status", "progress",
	"file_metadata", "error_message", "processing_time", "created_at", "updated_at", "processed_at",
}

// List 按创建时间倒序分页.
func (s *FileService) List(ctx context.Context, id ctxPkg.Identity, req types.ListFilesRequest) (types.FileListResponse, error) {
	q := ownerScope(s.deps.DB.WithContext(ctx).Model(&model.FileRecord{}), id)
	if req.FileType != "" {
		q = q.Where("file_type = ?", req.FileType)
	}

	if req.Status != "" {
		st := model.FileStatus(req.Status)
		if !st.Valid() {
			return types.FileListResponse{}, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
		}

		q = q.Where("status = ?", st)
	}

	return s.page(q, req.Limit, req.Offset)
}

// Search 文件名子串匹配，不区分大小写.
func (s *FileService) Search(ctx context.Context, id ctxPkg.Identity, req types.SearchFilesRequest) (types.FileListResponse, error) {
	term := strings.TrimSpace(req.Term())
	if term == "" {
		return types.FileListResponse{}, fmt.Errorf("%w: search query is required", ErrValidation)
	}

	q := ownerScope(s.deps.DB.WithContext(ctx).Model(&model.FileRecord{}), id).
		Where("LOWER(original_filename) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(term))+"%")

	return s.page(q, req.Limit, req.Offset)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *FileService) page(q *gorm.DB, limit, offset int) (types.FileListResponse, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return types.FileListResponse{}, err
	}

	var recs []model.FileRecord
	if err := q.Select(listColumns).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error; err != nil {
		return types.FileListResponse{}, err
	}

	items := make([]types.FileItem, 0, len(recs))
	for i := range recs {
		items = append(items, types.NewFileItem(&recs[i]))
	}

	return types.FileListResponse{Files: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete 删除记录与归档对象，处理中的模拟器会在下一次写入时停止.
func (s *FileService) Delete(ctx context.Context, id ctxPkg.Identity, fileID string) error {
	rec, err := s.Get(ctx, id, fileID)
	if err != nil {
		return err
	}

	res := s.deps.DB.WithContext(ctx).Where("id = ?", rec.ID).Delete(&model.FileRecord{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: File not found", ErrNotFound)
	}

	log := s.deps.Logger.With().Str("file_id", rec.ID).Logger()

	if rec.ObjectKey != "" && s.deps.Objects != nil {
		if err := s.deps.Objects.RemoveArtifact(ctx, rec.ObjectKey); err != nil {
			log.Warn().Err(err).Str("object_key", rec.ObjectKey).Msg("failed to remove archived object")
		}
	}

	// 模拟器结束前临时文件可能仍在
	scratch := filepath.Join(s.deps.Upload.ScratchDir(), rec.Filename)
	if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", scratch).Msg("failed to remove scratch file")
	}

	if err := s.deps.Events.FileDeleted(ctx, queue.FileDeletedPayload{File: fileRef(rec), ObjectKey: rec.ObjectKey}); err != nil {
		log.Warn().Err(err).Msg("failed to publish file deleted event")
	}

	s.invalidate(ctx, rec.OwnerID)

	log.Info().Uint("owner_id", rec.OwnerID).Msg("file deleted")

	return nil
}

func fileRef(rec *model.FileRecord) queue.FileRef {
	return queue.FileRef{
		FileID:           rec.ID,
		OwnerID:          rec.OwnerID,
		OriginalFilename: rec.OriginalFilename,
		FileType:         rec.FileType,
		FileSize:         rec.FileSize,
	}
}
