package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/livepreview/internal/adapter/onvifadapter"
	"github.com/gowvp/livepreview/internal/conf"
	"github.com/gowvp/livepreview/internal/core/preview"
	"github.com/gowvp/livepreview/internal/core/registry"
	"github.com/gowvp/livepreview/internal/core/registry/store/registrydb"
	"github.com/gowvp/livepreview/pkg/lalmax"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewLalmax,
	NewGateway,
	NewRegistryStore, NewRegistry,
	NewManager,
	NewPreviewAPI,
	NewWebHookAPI,
)

type Usecase struct {
	Conf       *conf.Bootstrap
	PreviewAPI PreviewAPI
	WebHookAPI WebHookAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	if !uc.Conf.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.NoRoute(func(c *gin.Context) {
		c.JSON(404, "来到了无人的荒漠")
	})
	setupRouter(g, uc)
	return g
}

// NewLalmax 流媒体管理接口客户端
func NewLalmax(bc *conf.Bootstrap) *lalmax.Engine {
	e := lalmax.NewEngine().SetConfig(lalmax.Config{
		URL:    bc.Media.URL,
		Secret: bc.Media.Secret,
	})
	return &e
}

// NewGateway 创建并启动 ONVIF 网关，进程退出时由 cleanup 关闭
func NewGateway(bc *conf.Bootstrap, engine *lalmax.Engine) (*onvifadapter.Gateway, func()) {
	g := onvifadapter.NewGateway(onvifadapter.Config{
		RequestTimeout:    bc.Gateway.RequestTimeout.Duration(),
		HeartbeatInterval: bc.Gateway.HeartbeatInterval.Duration(),
		HeartbeatTimeout:  bc.Gateway.HeartbeatTimeout.Duration(),
		PullTimeout:       bc.Media.PullTimeout.Duration(),
		AutoStopAfter:     bc.Media.AutoStopAfter.Duration(),
	}, engine)
	g.Init(context.Background())
	return g, g.Close
}

func NewRegistryStore(db *gorm.DB) registry.Storer {
	return registrydb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

func NewRegistry(gw *onvifadapter.Gateway, store registry.Storer) *registry.Registry {
	return registry.NewRegistry(gw, store)
}

// NewManager 会话管理，进程退出时释放全部会话
func NewManager(bc *conf.Bootstrap, gw *onvifadapter.Gateway, reg *registry.Registry) (*preview.Manager, func()) {
	m := preview.NewManager(gw, reg, preview.Options{
		RetryDelay: bc.Session.RetryDelay.Duration(),
		Channel:    bc.Session.Channel,
	})
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), bc.Gateway.RequestTimeout.Duration()*2)
		defer cancel()
		if err := m.Close(ctx); err != nil {
			slog.Error("释放预览会话超时", "err", err)
		}
	}
}
