package preview

import (
	"context"
	"log/slog"
)

// loginCoordinator 登录协调器，在工作协程中调用，不持有会话锁
type loginCoordinator struct {
	gw       Gateway
	registry Registry
	log      *slog.Logger
}

// authenticate 优先复用注册中心中凭据一致的身份，否则注销旧身份后重新登录
//
// 失败时不修改注册中心，返回分类后的错误。
func (c *loginCoordinator) authenticate(ctx context.Context, in Intent) (Identity, *Failure) {
	if err := ctx.Err(); err != nil {
		return Identity{}, superseded(err)
	}
	if id, creds, ok := c.registry.Lookup(in.Address); ok {
		if creds == in.Credentials() {
			c.log.DebugContext(ctx, "复用已登录身份", "address", in.Address)
			return id, nil
		}
		// 查询期间意图已被取代，注册中心里的身份可能属于新意图
		if err := ctx.Err(); err != nil {
			return Identity{}, superseded(err)
		}
		if err := c.registry.Logout(ctx, in.Address); err != nil {
			c.log.WarnContext(ctx, "注销旧身份失败", "address", in.Address, "err", err)
		}
	}

	token, err := c.gw.Login(ctx, in.Address, in.Username, in.Password)
	if err != nil {
		f := classifyLogin(err)
		c.log.WarnContext(ctx, "登录失败", "address", in.Address, "kind", f.Kind, "code", f.Code, "err", err)
		return Identity{}, f
	}
	id := Identity{Address: in.Address, Token: token}

	// 意图已被取代，新身份不得发布出去
	if err := ctx.Err(); err != nil {
		if err := c.gw.Logout(context.WithoutCancel(ctx), id); err != nil {
			c.log.WarnContext(ctx, "注销过期身份失败", "address", in.Address, "err", err)
		}
		return Identity{}, superseded(err)
	}

	c.registry.Publish(ctx, id, in.Credentials())
	c.log.InfoContext(ctx, "登录成功", "address", in.Address)
	return id, nil
}

// superseded 意图已被取代，结果由 runLogin 丢弃
func superseded(err error) *Failure {
	return &Failure{Kind: KindTransientLogin, Code: -1, Err: err}
}
