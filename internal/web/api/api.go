package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		// 格式化输出到控制台，然后记录到日志
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Metrics(),
		web.Logger(
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/health"),
		),
	)
	if !uc.Conf.Server.Debug {
		go web.CountGoroutines(10*time.Minute, 20)
	}

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Range", "Accept-Language",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Accept-Encoding", "Cache-Control", "Pragma", "X-Requested-With",
			"Last-Event-ID",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	r.GET("/health", web.WrapH(uc.getHealth))

	// 事件流不能压缩，其余 json 接口走 gzip
	api := r.Group("", gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/sessions/[^/]+/events`})))
	registerPreview(api, uc.PreviewAPI)
	registerLalmaxWebhook(r, uc.WebHookAPI)
}

type getHealthOutput struct {
	StartAt       time.Time `json:"start_at"`
	Goroutines    int       `json:"goroutines"`
	Sessions      int       `json:"sessions"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemPercent    float64   `json:"mem_percent"`
	MemUsed       uint64    `json:"mem_used"`
	GatewayOnline bool      `json:"gateway_online"`
}

func (uc *Usecase) getHealth(c *gin.Context, _ *struct{}) (getHealthOutput, error) {
	ctx := c.Request.Context()
	out := getHealthOutput{
		StartAt:       startRuntime,
		Goroutines:    runtime.NumGoroutine(),
		Sessions:      len(uc.PreviewAPI.manager.List()),
		GatewayOnline: uc.PreviewAPI.gateway.Ready(),
	}
	// 主机指标取不到时不影响健康检查
	if v, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(v) > 0 {
		out.CPUPercent = v[0]
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemPercent = v.UsedPercent
		out.MemUsed = v.Used
	}
	return out, nil
}
