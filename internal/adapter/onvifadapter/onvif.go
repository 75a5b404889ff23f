package onvifadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gowvp/livepreview/internal/core/preview"
	"github.com/gowvp/livepreview/pkg/lalmax"
	"github.com/gowvp/onvif"
	devicemodel "github.com/gowvp/onvif/device"
	m "github.com/gowvp/onvif/media"
	sdkdevice "github.com/gowvp/onvif/sdk/device"
	sdkmedia "github.com/gowvp/onvif/sdk/media"
	xsdonvif "github.com/gowvp/onvif/xsd/onvif"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/orm"
)

var _ preview.Gateway = (*Gateway)(nil)

// Relayer 流媒体拉流转发
type Relayer interface {
	StartRelayPull(ctx context.Context, in lalmax.StartRelayPullRequest) (*lalmax.StartRelayPullResponse, error)
	StopRelayPull(ctx context.Context, streamName string) error
}

type Config struct {
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	PullTimeout       time.Duration
	AutoStopAfter     time.Duration // 0 表示不自动停止
}

// Gateway 基于 ONVIF 的设备网关
//
// 登录即建立 ONVIF 连接并校验账号，令牌为网关内部生成的随机串；
// 预览由 lalmax 从设备 RTSP 地址拉流，并以画面的 SinkName 作为流名称对外分发。
type Gateway struct {
	cfg    Config
	client *http.Client
	relay  Relayer

	devices conc.Map[string, *Device]         // token -> 设备连接
	handles conc.Map[preview.Handle, session] // 预览句柄 -> 拉流会话

	ready  atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc
	notify func(preview.ExceptionEvent)

	// connect 建立设备连接，resolve 解析播放地址，测试中替换
	connect func(ctx context.Context, address, username, password string) (*onvif.Device, error)
	resolve func(ctx context.Context, dev *Device, stream preview.StreamKind) (string, error)
	probe   func(ctx context.Context, dev *Device) error
}

type session struct {
	stream string
	token  string
}

// Device ONVIF 设备连接与心跳状态
type Device struct {
	*onvif.Device
	identity preview.Identity

	mu          sync.Mutex
	keepaliveAt orm.Time
	isOnline    bool
}

func NewGateway(cfg Config, relay Relayer) *Gateway {
	cli := *http.DefaultClient
	cli.Timeout = cfg.RequestTimeout
	if cli.Timeout <= 0 {
		cli.Timeout = 3 * time.Second
	}
	g := Gateway{
		cfg:    cfg,
		client: &cli,
		relay:  relay,
	}
	g.connect = g.dial
	g.resolve = g.streamURI
	g.probe = g.heartbeat
	return &g
}

// Init 启动网关，未初始化前登录和预览都返回 NotInitialized
func (g *Gateway) Init(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.ready.Store(true)
	g.startHealthCheck(ctx)
	slog.InfoContext(ctx, "ONVIF 网关已启动")
}

// Close 停止心跳，之后的调用返回 NotInitialized
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready.Store(false)
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Ready 网关是否已启动
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

// Reinitialize implements preview.Gateway.
func (g *Gateway) Reinitialize(ctx context.Context) error {
	g.Close()
	g.Init(context.WithoutCancel(ctx))
	return nil
}

// SetExceptionHandler implements preview.Gateway.
func (g *Gateway) SetExceptionHandler(fn func(preview.ExceptionEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notify = fn
}

func (g *Gateway) dial(ctx context.Context, address, username, password string) (*onvif.Device, error) {
	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:      address,
		Username:   username,
		Password:   password,
		HttpClient: g.client,
	})
	if err != nil {
		return nil, preview.NewGatewayError("login", preview.CodeNetworkFail, fmt.Errorf("IP 或 PORT 错误: %w", err))
	}
	if _, err := sdkdevice.Call_GetDeviceInformation(ctx, dev, devicemodel.GetDeviceInformation{}); err != nil {
		return nil, preview.NewGatewayError("login", loginCode(err), err)
	}
	return dev, nil
}

// Login implements preview.Gateway.
func (g *Gateway) Login(ctx context.Context, address, username, password string) (string, error) {
	if !g.ready.Load() {
		return "", preview.NewGatewayError("login", preview.CodeNotInitialized, nil)
	}
	if address == "" || username == "" || password == "" {
		return "", preview.NewGatewayError("login", preview.CodeParameterError, nil)
	}
	dev, err := g.connect(ctx, address, username, password)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	d := Device{
		Device:      dev,
		identity:    preview.Identity{Address: address, Token: token},
		keepaliveAt: orm.Now(),
		isOnline:    true,
	}
	g.devices.Store(token, &d)
	slog.InfoContext(ctx, "ONVIF 设备登录成功", "address", address)
	return token, nil
}

// Logout implements preview.Gateway.
func (g *Gateway) Logout(ctx context.Context, id preview.Identity) error {
	if _, ok := g.devices.Load(id.Token); !ok {
		return preview.NewGatewayError("logout", preview.CodeInvalidIdentity, nil)
	}
	g.devices.Delete(id.Token)

	// 该身份打开的拉流一并关闭
	g.handles.Range(func(h preview.Handle, s session) bool {
		if s.token == id.Token {
			if err := g.StopPreview(ctx, h); err != nil {
				slog.WarnContext(ctx, "注销时关闭拉流失败", "handle", h, "err", err)
			}
		}
		return true
	})
	return nil
}

// StartPreview implements preview.Gateway.
func (g *Gateway) StartPreview(ctx context.Context, id preview.Identity, req preview.PreviewRequest) (preview.Handle, error) {
	if !g.ready.Load() {
		return "", preview.NewGatewayError("preview", preview.CodeNotInitialized, nil)
	}
	if req.Surface == nil || req.Surface.SinkName() == "" {
		return "", preview.NewGatewayError("preview", preview.CodeParameterError, fmt.Errorf("surface is required"))
	}
	dev, ok := g.devices.Load(id.Token)
	if !ok || dev.identity != id {
		return "", preview.NewGatewayError("preview", preview.CodeInvalidIdentity, nil)
	}

	rtsp, err := g.resolve(ctx, dev, req.Stream)
	if err != nil {
		return "", preview.NewGatewayError("preview", preview.CodePreviewFail, err)
	}

	stream := req.Surface.SinkName()
	autoStop := -1
	if g.cfg.AutoStopAfter > 0 {
		autoStop = int(g.cfg.AutoStopAfter.Milliseconds())
	}
	resp, err := g.relay.StartRelayPull(ctx, lalmax.StartRelayPullRequest{
		URL:                      rtsp,
		StreamName:               stream,
		PullTimeoutMs:            int(g.cfg.PullTimeout.Milliseconds()),
		PullRetryNum:             0,
		AutoStopPullAfterNoOutMs: autoStop,
	})
	if err != nil {
		return "", preview.NewGatewayError("preview", preview.CodePreviewFail, err)
	}

	h := preview.Handle(resp.Data.SessionID)
	if h == "" {
		h = preview.Handle(stream + "#" + uuid.NewString()[:8])
	}
	g.handles.Store(h, session{stream: stream, token: id.Token})
	slog.InfoContext(ctx, "ONVIF 预览已转发", "address", id.Address, "stream", stream, "channel", req.Channel)
	return h, nil
}

// StopPreview implements preview.Gateway.
func (g *Gateway) StopPreview(ctx context.Context, h preview.Handle) error {
	s, ok := g.handles.Load(h)
	if !ok {
		return nil
	}
	g.handles.Delete(h)
	if err := g.relay.StopRelayPull(ctx, s.stream); err != nil {
		return preview.NewGatewayError("stop", preview.CodePreviewFail, err)
	}
	return nil
}

// streamURI 按码流类型选择 Profile 并返回带账号的 RTSP 地址
func (g *Gateway) streamURI(ctx context.Context, dev *Device, stream preview.StreamKind) (string, error) {
	resp, err := sdkmedia.Call_GetProfiles(ctx, dev.Device, m.GetProfiles{})
	if err != nil {
		return "", fmt.Errorf("查询 Profiles 失败: %w", err)
	}
	tokens := make([]string, 0, len(resp.Profiles))
	for _, p := range resp.Profiles {
		tokens = append(tokens, string(p.Token))
	}
	profile, ok := pickProfile(tokens, stream)
	if !ok {
		return "", fmt.Errorf("没有找到 ONVIF 通道")
	}

	var param m.GetStreamUri
	param.StreamSetup.Transport.Protocol = "RTSP"
	param.StreamSetup.Stream = "RTP-Unicast"
	param.ProfileToken = xsdonvif.ReferenceToken(profile)
	uri, err := sdkmedia.Call_GetStreamUri(ctx, dev.Device, param)
	if err != nil {
		return "", fmt.Errorf("获取 RTSP 地址失败: %w", err)
	}
	params := dev.GetDeviceParams()
	return buildPlayURL(string(uri.MediaUri.Uri), params.Username, params.Password), nil
}

// pickProfile 主码流取第一个 Profile，子码流取第二个，不存在时退回主码流
func pickProfile(tokens []string, stream preview.StreamKind) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	if stream == preview.StreamSub && len(tokens) > 1 {
		return tokens[1], true
	}
	return tokens[0], true
}

func buildPlayURL(rawurl, username, password string) string {
	if username == "" || password == "" {
		return rawurl
	}
	u, err := url.Parse(rawurl)
	if err != nil || u.Scheme == "" {
		return strings.Replace(rawurl, "rtsp://", fmt.Sprintf("rtsp://%s:%s@", username, password), 1)
	}
	u.User = url.UserPassword(username, password)
	return u.String()
}

// loginCode 设备拒绝鉴权时视为账号密码错误，其余视为网络失败
func loginCode(err error) int {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "locked"):
		return preview.CodeUserLocked
	case strings.Contains(s, "notauthorized"),
		strings.Contains(s, "not authorized"),
		strings.Contains(s, "unauthorized"),
		strings.Contains(s, "401"):
		return preview.CodePasswordError
	default:
		return preview.CodeNetworkFail
	}
}
