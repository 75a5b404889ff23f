package lalmax

import "context"

const (
	apiCtrlStartRelayPull = "/api/ctrl/start_relay_pull"
	apiCtrlStopRelayPull  = "/api/ctrl/stop_relay_pull"
)

type StartRelayPullRequest struct {
	URL           string `json:"url"`             // 回源拉流的完整地址，支持 rtmp 和 rtsp
	StreamName    string `json:"stream_name"`     // 不指定时从 url 中解析
	PullTimeoutMs int    `json:"pull_timeout_ms"` // 建立会话的超时时间
	// 失败或中途断开后的重试次数
	//  -1 一直重试，直到收到 stop 请求
	//  = 0 不重试
	PullRetryNum int `json:"pull_retry_num"`
	// 没有观看者时自动关闭拉流
	//  -1 不启用
	//  > 0 没有观看者持续多久后关闭，单位毫秒
	AutoStopPullAfterNoOutMs int `json:"auto_stop_pull_after_no_out_ms"`
	RtspMode                 int `json:"rtsp_mode"` // 0 tcp, 1 udp
}

type StartRelayPullResponse struct {
	CommonResp
	Data struct {
		StreamName string `json:"stream_name"`
		SessionID  string `json:"session_id"`
	} `json:"data"`
}

// StartRelayPull 让 lalmax 从设备拉流并以 StreamName 对外分发
func (e *Engine) StartRelayPull(ctx context.Context, in StartRelayPullRequest) (*StartRelayPullResponse, error) {
	var resp StartRelayPullResponse
	if err := e.post(ctx, apiCtrlStartRelayPull, in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type StopRelayPullResponse struct {
	CommonResp
	Data struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}

// StopRelayPull 关闭拉流
func (e *Engine) StopRelayPull(ctx context.Context, streamName string) error {
	var resp StopRelayPullResponse
	return e.post(ctx, apiCtrlStopRelayPull, map[string]string{"stream_name": streamName}, &resp)
}
