package lalmax

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const apiStatKeyFrame = "/api/stat/key_frame"

// KeyFrameImage 获取流最近关键帧的 PNG 图片
func (e *Engine) KeyFrameImage(ctx context.Context, streamName string) ([]byte, error) {
	if streamName == "" {
		return nil, fmt.Errorf("lalmax: stream_name is required")
	}
	q := url.Values{"stream_name": {streamName}, "type": {"image"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+apiStatKeyFrame+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lalmax: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		if len(body) > 0 && body[0] == '{' {
			return nil, fmt.Errorf("lalmax: %s", body)
		}
		return body, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("lalmax: keyframe is being generated, please try again later")
	case http.StatusNotFound:
		return nil, fmt.Errorf("lalmax: stream not found: %s", streamName)
	default:
		return nil, fmt.Errorf("lalmax: unexpected status code %d: %s", resp.StatusCode, body)
	}
}
