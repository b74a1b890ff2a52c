package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/metrics"
	"github.com/yeisme/fileparser/pkg/parser"
	"github.com/yeisme/fileparser/pkg/queue"
)

// MsgUploadAccepted 上传被接受后的提示.
const MsgUploadAccepted = "File uploaded successfully and processing started"

const maxFilenameLen = 255

// Accept 校验并落盘上传内容，创建记录后异步开始处理.
// 校验失败时不会创建记录.
func (s *FileService) Accept(ctx context.Context, id ctxPkg.Identity, filename string, r io.Reader) (*model.FileRecord, error) {
	name := cleanFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}

	if len(name) > maxFilenameLen {
		return nil, fmt.Errorf("%w: filename longer than %d bytes", ErrValidation, maxFilenameLen)
	}

	cfg := s.deps.Upload
	ext := parser.Extension(name)

	fileType, ok := parser.DetectType(name)
	if !ok || !cfg.Allows(ext) {
		return nil, fmt.Errorf("%w: file type .%s not supported, allowed: %s",
			ErrValidation, ext, strings.Join(cfg.AllowedExtensions, ", "))
	}

	dir := cfg.ScratchDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	fileID := uuid.NewString()
	stored := fileID + "_" + name
	path := filepath.Join(dir, stored)

	size, err := writeScratch(path, r, cfg.MaxBytes())
	if err != nil {
		_ = os.Remove(path)

		return nil, err
	}

	rec := &model.FileRecord{
		ID:               fileID,
		OwnerID:          id.UserID,
		Filename:         stored,
		OriginalFilename: name,
		FileType:         fileType,
		FileSize:         size,
		Status:           model.StatusUploading,
	}

	if err := s.deps.DB.WithContext(ctx).Create(rec).Error; err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("persist file record: %w", err)
	}

	log := s.deps.Logger.With().Str("file_id", fileID).Str("file_type", fileType).Logger()

	metrics.FilesUploaded.WithLabelValues(fileType).Inc()
	s.invalidate(ctx, id.UserID)

	if err := s.deps.Events.FileUploaded(ctx, queue.FileUploadedPayload{File: fileRef(rec)}); err != nil {
		log.Warn().Err(err).Msg("failed to publish file uploaded event")
	}

	job := processor.Job{
		FileID:           fileID,
		OwnerID:          id.UserID,
		FileType:         fileType,
		OriginalFilename: name,
		FileSize:         size,
		Path:             path,
	}
	if err := s.deps.Processor.Schedule(job); err != nil {
		// 关闭过程中到达的上传留给巡检标记失败
		log.Warn().Err(err).Msg("failed to schedule processing")
	}

	log.Info().Uint("owner_id", id.UserID).Int64("size", size).Msg("file accepted")

	return rec, nil
}

// writeScratch 流式写入，边写边计数，不信任客户端声明的大小.
func writeScratch(path string, r io.Reader, maxBytes int64) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()

	if err != nil {
		return 0, fmt.Errorf("write scratch file: %w", err)
	}

	if closeErr != nil {
		return 0, fmt.Errorf("close scratch file: %w", closeErr)
	}

	if n == 0 {
		return 0, fmt.Errorf("%w: Empty file", ErrValidation)
	}

	if n > maxBytes {
		return 0, fmt.Errorf("%w: File too large, maximum size is %d bytes", ErrValidation, maxBytes)
	}

	return n, nil
}

// cleanFilename 去掉客户端带来的目录部分.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)

	if name == "." || name == "/" || name == ".." {
		return ""
	}

	return name
}
