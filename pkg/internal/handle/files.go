package handle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yeisme/fileparser/pkg/internal/service"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

// Upload 上传文件并开始异步解析.
//
//	@Summary		上传文件
//	@Description	接受 csv/txt/xlsx/xls/pdf/json，立即返回，进度通过 /ws/{id} 推送
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"待解析文件"
//	@Success		201		{object}	types.UploadResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		413		{object}	types.ErrorResponse
//	@Router			/files [post]
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.Upload.MaxBytes()+multipartOverhead)

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		h.writeError(c, fmt.Errorf("%w: file is required", service.ErrValidation))
		return
	}

	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: invalid multipart form", service.ErrValidation)
		}

		h.writeError(c, err)

		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	rec, err := h.deps.Files.Accept(c.Request.Context(), identity(c), fh.Filename, f)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.UploadResponse{
		FileID:   rec.ID,
		Filename: rec.OriginalFilename,
		FileType: rec.FileType,
		FileSize: rec.FileSize,
		Status:   string(rec.Status),
		Progress: rec.Progress,
		Message:  service.MsgUploadAccepted,
	})
}

// GetFile 返回解析结果，未就绪时返回 409 与当前进度.
//
//	@Summary	解析结果
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id				path		string	true	"文件 ID"
//	@Param		If-None-Match	header		string	false	"上次的 ETag"
//	@Success	200				{object}	types.ContentResponse
//	@Success	304
//	@Failure	404	{object}	types.ErrorResponse
//	@Failure	409	{object}	types.NotReadyResponse
//	@Router		/files/{id} [get]
func (h *Handler) GetFile(c *gin.Context) {
	rec, etag, err := h.deps.Files.Content(c.Request.Context(), identity(c), c.Param("id"))
	if errors.Is(err, service.ErrNotReady) && rec != nil {
		c.JSON(http.StatusConflict, types.NotReadyResponse{Error: err.Error(), ProgressResponse: types.NewProgressResponse(rec)})
		return
	}

	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, no-cache")

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, types.NewContentResponse(rec))
}

// Progress 处理进度.
//
//	@Summary	处理进度
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"文件 ID"
//	@Success	200	{object}	types.ProgressResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/files/{id}/progress [get]
func (h *Handler) Progress(c *gin.Context) {
	resp, err := h.deps.Files.Progress(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFiles 分页列出文件.
//
//	@Summary	文件列表
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Param		file_type	query		string	false	"文件类型"	Enums(csv, excel, pdf, json, text)
//	@Param		status		query		string	false	"状态"	Enums(uploading, processing, ready, failed)
//	@Param		limit		query		int		false	"每页数量"	minimum(1)	maximum(100)
//	@Param		offset		query		int		false	"偏移"
//	@Success	200			{object}	types.FileListResponse
//	@Router		/files [get]
func (h *Handler) ListFiles(c *gin.Context) {
	var req types.ListFilesRequest
	if err := bind(c, &req, binding.Query); err != nil {
		h.writeError(c, err)
		return
	}

	resp, err := h.deps.Files.List(c.Request.Context(), identity(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SearchFiles 按文件名搜索.
//
//	@Summary	搜索文件
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Param		q		query		string	true	"文件名子串"
//	@Param		limit	query		int		false	"每页数量"	minimum(1)	maximum(100)
//	@Param		offset	query		int		false	"偏移"
//	@Success	200		{object}	types.FileListResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/files/search [get]
func (h *Handler) SearchFiles(c *gin.Context) {
	var req types.SearchFilesRequest
	if err := bind(c, &req, binding.Query); err != nil {
		h.writeError(c, err)
		return
	}

	resp, err := h.deps.Files.Search(c.Request.Context(), identity(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stats 文件统计.
//
//	@Summary	文件统计
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	types.StatsResponse
//	@Router		/files/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	resp, err := h.deps.Stats.Stats(c.Request.Context(), identity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteFile 删除文件.
//
//	@Summary	删除文件
//	@Tags		files
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"文件 ID"
//	@Success	200	{object}	types.DeleteResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/files/{id} [delete]
func (h *Handler) DeleteFile(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Files.Delete(c.Request.Context(), identity(c), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DeleteResponse{Success: true, Message: fmt.Sprintf("File %s deleted successfully", id)})
}
