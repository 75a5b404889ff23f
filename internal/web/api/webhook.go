package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/livepreview/internal/adapter/onvifadapter"
	"github.com/ixugo/goddd/pkg/web"
)

// WebHookAPI lalmax 回调
type WebHookAPI struct {
	gateway *onvifadapter.Gateway
	log     *slog.Logger
}

func NewWebHookAPI(gw *onvifadapter.Gateway) WebHookAPI {
	return WebHookAPI{
		gateway: gw,
		log:     slog.With("hook", "lalmax"),
	}
}

func registerLalmaxWebhook(r gin.IRouter, api WebHookAPI, handler ...gin.HandlerFunc) {
	{
		group := r.Group("/webhooks/lalmax", handler...)
		group.POST("/on_relay_pull_stop", web.WrapH(api.onRelayPullStop))
	}
}

type onRelayPullStopInput struct {
	StreamName string `json:"stream_name" binding:"required"`
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
}

type DefaultOutput struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func newDefaultOutputOK() DefaultOutput {
	return DefaultOutput{Code: 0, Msg: "success"}
}

// onRelayPullStop 拉流结束通知，设备侧断流时上报重连事件
func (w WebHookAPI) onRelayPullStop(c *gin.Context, in *onRelayPullStopInput) (DefaultOutput, error) {
	w.log.InfoContext(c.Request.Context(), "webhook onRelayPullStop", "stream", in.StreamName, "session_id", in.SessionID)
	w.gateway.OnRelayPullStop(c.Request.Context(), in.StreamName)
	return newDefaultOutputOK(), nil
}
