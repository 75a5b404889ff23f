package conf

import "time"

type Bootstrap struct {
	Server  Server  `comment:"服务"`
	Data    Data    `comment:"数据"`
	Gateway Gateway `comment:"设备网关"`
	Media   Media   `comment:"流媒体"`
	Session Session `comment:"预览会话"`
	Log     Log     `comment:"日志"`

	ConfigDir  string `toml:"-"`
	ConfigPath string `toml:"-"`
}

type Server struct {
	Debug bool
	HTTP  ServerHTTP
}

type ServerHTTP struct {
	Port    int      `comment:"http 端口"`
	Timeout Duration `comment:"请求超时时间"`
}

type Data struct {
	Database Database
}

type Database struct {
	Dsn             string   `comment:"sqlite 填写相对路径；postgres://... 或 mysql://..."`
	MaxIdleConns    int32    `comment:"最大空闲连接"`
	MaxOpenConns    int32    `comment:"最大连接数"`
	ConnMaxLifetime Duration `comment:"连接最大存活时间"`
	SlowThreshold   Duration `comment:"慢查询阈值"`
}

type Gateway struct {
	RequestTimeout    Duration `comment:"单次 onvif 请求超时"`
	HeartbeatInterval Duration `comment:"心跳间隔"`
	HeartbeatTimeout  Duration `comment:"超过该时间没有心跳视为断线"`
}

type Media struct {
	URL           string   `comment:"lalmax 管理接口地址"`
	Secret        string   `comment:"lalmax 接口密钥"`
	PullTimeout   Duration `comment:"拉流建立超时"`
	AutoStopAfter Duration `comment:"无人观看自动停止，0 表示不启用"`
}

type Session struct {
	RetryDelay Duration `comment:"失败后的固定重试间隔"`
	Channel    int      `comment:"预览通道号"`
}

type Log struct {
	Level  string `comment:"debug/info/warn/error"`
	Format string `comment:"text/json"`
}

// Duration 以 "5s" 这样的文本读写配置文件
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
