package preview

// StreamKind 码流类型
type StreamKind int

const (
	StreamMain StreamKind = iota // 主码流
	StreamSub                    // 子码流
)

func (k StreamKind) String() string {
	if k == StreamSub {
		return "sub"
	}
	return "main"
}

// Intent 会话意图，提交后不可变，按值比较
type Intent struct {
	Address  string     `json:"address"`
	Username string     `json:"username"`
	Password string     `json:"password"`
	Stream   StreamKind `json:"stream"`
}

// Valid 任意字段为空视为无效输入
func (i Intent) Valid() bool {
	return i.Address != "" && i.Username != "" && i.Password != ""
}

// Credentials 去掉码流信息后的凭据
func (i Intent) Credentials() Credentials {
	return Credentials{Username: i.Username, Password: i.Password}
}

// Credentials 登录凭据
type Credentials struct {
	Username string
	Password string
}

// Identity 登录身份，Token 为网关返回的不透明句柄
// 会话持有 *Identity，nil 表示该地址未登录
type Identity struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

// PlaybackConfig 播放配置，不携带凭据，每次登录成功后整体替换
type PlaybackConfig struct {
	Address string     `json:"address"`
	Stream  StreamKind `json:"stream"`
}

// Surface 渲染目标，所有权归调用方
type Surface interface {
	SinkName() string
}

// StreamSink 以流媒体服务中的流名称作为渲染目标
type StreamSink string

// SinkName implements Surface.
func (s StreamSink) SinkName() string { return string(s) }

// Handle 预览句柄，空字符串表示无
type Handle string

// Phase 播放控制器状态
type Phase int

const (
	PhaseIdle           Phase = iota // 未请求播放
	PhaseAwaitingInputs              // 请求播放，缺少身份/配置/画面之一
	PhasePlaying                     // 预览已打开
	PhaseRetryPending                // 上次尝试失败，等待重试
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingInputs:
		return "awaiting_inputs"
	case PhasePlaying:
		return "playing"
	case PhaseRetryPending:
		return "retry_pending"
	default:
		return "idle"
	}
}

// State 播放控制器推理所依赖的聚合
type State struct {
	Identity    *Identity
	Config      *PlaybackConfig
	Surface     Surface
	RequirePlay bool
	Handle      Handle
}

func (s State) ready() bool {
	return s.Identity != nil && s.Config != nil && s.Surface != nil
}

// Snapshot 对外暴露的会话快照
type Snapshot struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Stream      StreamKind `json:"stream"`
	LoggedIn    bool       `json:"logged_in"`
	Surface     string     `json:"surface"`
	RequirePlay bool       `json:"require_play"`
	Handle      string     `json:"handle"`
	Phase       string     `json:"phase"`
	Released    bool       `json:"released"`
}

// ExceptionKind 网关异常事件类型
type ExceptionKind int

const (
	ExceptionReconnecting ExceptionKind = iota + 1 // 连接丢失，网关正在重连
	ExceptionReconnected                           // 重连成功
)

// ExceptionEvent 网关按身份推送的异常事件
type ExceptionEvent struct {
	Kind     ExceptionKind
	Identity Identity
}

// RegistryEvent 登录注册中心推送给订阅者的事件
// Exception 为 nil 时表示身份变化，Identity 为 nil 表示已登出
type RegistryEvent struct {
	Address   string
	Identity  *Identity
	Exception *ExceptionEvent
}
