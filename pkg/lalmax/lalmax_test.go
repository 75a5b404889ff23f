package lalmax

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewEngine().SetConfig(Config{URL: srv.URL, Secret: "s3"})
}

func TestStartRelayPull(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiCtrlStartRelayPull, r.URL.Path)
		assert.Equal(t, "Bearer s3", r.Header.Get("Authorization"))
		var in StartRelayPullRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "live/cam1", in.StreamName)
		_, _ = w.Write([]byte(`{"code":10000,"msg":"succ","data":{"stream_name":"live/cam1","session_id":"RTSPPULL1"}}`))
	})

	resp, err := e.StartRelayPull(context.Background(), StartRelayPullRequest{URL: "rtsp://a", StreamName: "live/cam1"})
	require.NoError(t, err)
	assert.Equal(t, "RTSPPULL1", resp.Data.SessionID)
}

func TestStartRelayPullBusinessError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":11003,"msg":""}`))
	})

	_, err := e.StartRelayPull(context.Background(), StartRelayPullRequest{URL: "rtsp://a"})
	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, CodeStartRelayPullFail, le.Code)
	assert.Contains(t, err.Error(), "relay pull 失败")
}

func TestStopRelayPull(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiCtrlStopRelayPull, r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "live/cam1", in["stream_name"])
		_, _ = w.Write([]byte(`{"code":10000,"msg":"succ"}`))
	})
	require.NoError(t, e.StopRelayPull(context.Background(), "live/cam1"))
}

func TestKeyFrameImage(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("stream_name") {
		case "live/ok":
			_, _ = w.Write([]byte("\x89PNG"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	b, err := e.KeyFrameImage(context.Background(), "live/ok")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), b)

	_, err = e.KeyFrameImage(context.Background(), "live/missing")
	require.Error(t, err)

	_, err = e.KeyFrameImage(context.Background(), "")
	require.Error(t, err)
}
