package lalmax

import "fmt"

type ResCode int64

const (
	CodeSuccess      ResCode = 10000
	CodeInvalidParam ResCode = 10001
	CodeServerBusy   ResCode = 10002

	CodeGroupNotFound      ResCode = 11001
	CodeSessionNotFound    ResCode = 11002
	CodeStartRelayPullFail ResCode = 11003
)

var codeMsgMap = map[ResCode]string{
	CodeSuccess:            "success",
	CodeInvalidParam:       "请求参数错误",
	CodeServerBusy:         "服务繁忙",
	CodeGroupNotFound:      "group不存在",
	CodeSessionNotFound:    "session不存在",
	CodeStartRelayPullFail: "relay pull 失败",
}

// CommonResp 所有接口共有的响应头
type CommonResp struct {
	Code ResCode `json:"code"`
	Msg  string  `json:"msg"`
}

func (c CommonResp) code() ResCode { return c.Code }
func (c CommonResp) msg() string   { return c.Msg }

// Responser 响应体约束
type Responser interface {
	code() ResCode
	msg() string
}

// Error lalmax 返回的业务错误
type Error struct {
	Path string
	Code ResCode
	Msg  string
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = codeMsgMap[e.Code]
	}
	return fmt.Sprintf("lalmax %s code[%d]: %s", e.Path, e.Code, msg)
}
