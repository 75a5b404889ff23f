package preview

import (
	"context"
)

// Gateway 设备网关抽象接口（端口）
//
// 网关本身是黑盒，只返回成功/失败与不透明句柄。
// 失败时返回 *GatewayError，Code 即网关的 last error code。
// 所有方法都可能阻塞，调用方不得在通知派发上下文中调用。
type Gateway interface {
	// Login 登录设备，返回不透明的用户句柄
	Login(ctx context.Context, address, username, password string) (token string, err error)

	// Logout 注销身份，失败可忽略
	Logout(ctx context.Context, id Identity) error

	// StartPreview 打开预览
	StartPreview(ctx context.Context, id Identity, req PreviewRequest) (Handle, error)

	// StopPreview 关闭预览
	StopPreview(ctx context.Context, h Handle) error

	// Reinitialize 重新初始化网关，幂等
	Reinitialize(ctx context.Context) error

	// SetExceptionHandler 注册进程级异常事件回调，按身份推送
	SetExceptionHandler(fn func(ExceptionEvent))
}

// PreviewRequest 预览参数
type PreviewRequest struct {
	Channel  int
	Stream   StreamKind
	Blocking bool
	Surface  Surface
}

// Registry 全局登录注册中心，地址 -> 身份的唯一数据源
//
// 只有注册中心可以修改规范身份，会话只读并订阅。
type Registry interface {
	// Lookup 查询地址当前有效的身份与登录时使用的凭据
	Lookup(address string) (Identity, Credentials, bool)

	// Publish 发布新身份，通知该地址的全部订阅者
	Publish(ctx context.Context, id Identity, creds Credentials)

	// Logout 注销地址上的身份并通知订阅者
	Logout(ctx context.Context, address string) error

	// Subscribe 订阅地址上的身份变化与异常事件，返回取消订阅函数
	Subscribe(address string, fn func(RegistryEvent)) (cancel func())
}

// Observer 会话对外通知
type Observer interface {
	OnError(err error)
	OnStartPlay()
	OnStopPlay()
	OnReconnect()
	OnReconnectSuccess()
}
