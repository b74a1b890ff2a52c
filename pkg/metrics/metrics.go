// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集 HTTP、解析流水线与推送相关指标.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		return err
//	}
//
//	metrics.FilesUploaded.WithLabelValues("csv").Inc()
package metrics

import (
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/fileparser/pkg/configs"
)

const namespace = configs.AppName

// 全局指标变量，未启用时照常计数但不暴露.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WebsocketConnections 活跃 WebSocket 连接数.
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Number of open progress websocket connections",
		},
	)

	// FilesUploaded 被接受的上传.
	FilesUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_uploaded_total",
			Help:      "Uploads accepted, by file type",
		},
		[]string{"file_type"},
	)

	// FilesProcessed 进入终态的文件.
	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files that reached a terminal status",
		},
		[]string{"file_type", "status"},
	)

	// ProcessingDuration 从开始处理到终态的耗时.
	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_processing_seconds",
			Help:      "Processing time until a terminal status",
			Buckets:   []float64{1, 2, 4, 5, 8, 15, 30, 60},
		},
		[]string{"file_type"},
	)

	// ActiveSimulations 正在运行的模拟任务.
	ActiveSimulations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_simulations",
			Help:      "Files currently owned by a progress simulator",
		},
	)

	// EventsDelivered 推送给订阅者的事件.
	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_events_total",
			Help:      "Progress events handed to subscribers",
		},
		[]string{"type"},
	)

	// SubscribersEvicted 因缓冲区满被移除的订阅者.
	SubscribersEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_subscribers_evicted_total",
			Help:      "Subscribers dropped because their buffer was full",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	initOnce sync.Once
)

// InitMetrics 初始化Metrics，重复调用只生效一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(config.Labels, registry)

		// 注册标准收集器
		if config.RuntimeMetrics {
			if err = reg.Register(collectors.NewGoCollector()); err != nil {
				return
			}

			if err = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
				return
			}
		}

		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration, WebsocketConnections,
			FilesUploaded, FilesProcessed, ProcessingDuration,
			ActiveSimulations, EventsDelivered, SubscribersEvicted,
		} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// Handler 同时导出自定义注册表与默认注册表（GORM 插件注册在默认注册表）.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// Mount 在主服务上挂载指标路径，Endpoint 非空时由 NewServer 独立暴露.
func Mount(config configs.MetricsConfig, engine *gin.Engine) {
	if !config.Enabled || config.Endpoint != "" {
		return
	}

	engine.GET(config.Path, gin.WrapH(Handler()))
}

// NewServer 构建独立的指标服务，未配置 Endpoint 时返回 nil.
func NewServer(config configs.MetricsConfig) *http.Server {
	if !config.Enabled || config.Endpoint == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(config.Path, Handler())

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return &http.Server{Addr: config.Endpoint, Handler: mux}
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
