package preview

import (
	"errors"
	"fmt"
)

// 网关错误码
const (
	CodePasswordError   = 1   // 用户名或密码错误
	CodeNotInitialized  = 3   // 网关未初始化
	CodeNetworkFail     = 7   // 连接设备失败
	CodeParameterError  = 17  // 参数错误，凭据格式不合法
	CodeUserLocked      = 153 // 账号被锁定
	CodePreviewFail     = 23  // 预览失败
	CodeInvalidIdentity = 47  // 身份已失效
)

// GatewayError 网关调用失败
type GatewayError struct {
	Op   string
	Code int
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s code[%d]: %s", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s code[%d]", e.Op, e.Code)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError 构造网关错误
func NewGatewayError(op string, code int, err error) *GatewayError {
	return &GatewayError{Op: op, Code: code, Err: err}
}

// ErrorCode 取出网关错误码，非网关错误返回 -1
func ErrorCode(err error) int {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return -1
}

// Kind 失败分类
type Kind int

const (
	KindNotInitialized     Kind = iota + 1 // 网关未初始化，重新初始化后重试
	KindInvalidCredentials                 // 凭据错误，终止
	KindAccountLocked                      // 账号锁定，终止
	KindTransientLogin                     // 登录临时失败，重试
	KindPlayFailed                         // 播放失败，重试
)

func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountLocked:
		return "account_locked"
	case KindTransientLogin:
		return "transient_login_error"
	case KindPlayFailed:
		return "play_failed"
	default:
		return "unknown"
	}
}

// Failure 分类后的错误，以值的形式交给观察者
type Failure struct {
	Kind Kind
	Code int
	Err  error
}

var (
	ErrNotInitialized     = &Failure{Kind: KindNotInitialized}
	ErrInvalidCredentials = &Failure{Kind: KindInvalidCredentials}
	ErrAccountLocked      = &Failure{Kind: KindAccountLocked}
	ErrTransientLogin     = &Failure{Kind: KindTransientLogin}
	ErrPlayFailed         = &Failure{Kind: KindPlayFailed}
)

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s code[%d]: %s", f.Kind, f.Code, f.Err)
	}
	return fmt.Sprintf("%s code[%d]", f.Kind, f.Code)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is 同类失败视为相等，便于 errors.Is(err, ErrPlayFailed)
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Retryable 终止性失败不会自动重试
func (f *Failure) Retryable() bool {
	return f.Kind != KindInvalidCredentials && f.Kind != KindAccountLocked
}

// classifyLogin 登录失败分类，按顺序首个匹配生效
func classifyLogin(err error) *Failure {
	code := ErrorCode(err)
	f := Failure{Code: code, Err: err}
	switch code {
	case CodeNotInitialized:
		f.Kind = KindNotInitialized
	case CodePasswordError, CodeParameterError:
		f.Kind = KindInvalidCredentials
	case CodeUserLocked:
		f.Kind = KindAccountLocked
	default:
		f.Kind = KindTransientLogin
	}
	return &f
}

// classifyPlay 播放失败分类
func classifyPlay(err error) *Failure {
	code := ErrorCode(err)
	if code == CodeNotInitialized {
		return &Failure{Kind: KindNotInitialized, Code: code, Err: err}
	}
	return &Failure{Kind: KindPlayFailed, Code: code, Err: err}
}
