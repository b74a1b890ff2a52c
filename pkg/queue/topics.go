package queue

// 主题命名规范：fp.<域>.<动作>，尽量稳定且向后兼容.

const (
	// TopicFileEvents 进度与状态推送，由通知中心消费.
	TopicFileEvents = "fp.file.events"

	// 文件生命周期，供下游消费者订阅.
	TopicFileUploaded  = "fp.file.uploaded"  // 上传被接受，记录已创建
	TopicFileProcessed = "fp.file.processed" // 解析完成，状态 ready
	TopicFileFailed    = "fp.file.failed"    // 解析失败或被中断
	TopicFileDeleted   = "fp.file.deleted"   // 记录被用户删除
)
