// Package lalmax lalmax 流媒体服务的管理接口客户端
package lalmax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Config struct {
	URL    string
	Secret string
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 30,
				MaxConnsPerHost:     100,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	e.cfg = cfg
	return e
}

// post 发送 POST 请求到 lalmax API，业务码非成功时返回 *Error
func (e *Engine) post(ctx context.Context, path string, in any, out Responser) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Secret)
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("lalmax: decode %s status[%d]: %w", path, resp.StatusCode, err)
	}
	if c := out.code(); c != CodeSuccess {
		return &Error{Path: path, Code: c, Msg: out.msg()}
	}
	return nil
}
