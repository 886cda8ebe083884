package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledcontrol-go/errcode"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"

	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, pixels int, maxBody int64) (*state.State, *httptest.Server) {
	t.Helper()
	st := state.New(state.Config{Pixels: pixels, FPS: 30, Brightness: 0.1})
	srv := httptest.NewServer(New(Config{MaxBodyBytes: maxBody}, st, nil).Router())
	t.Cleanup(srv.Close)
	return st, srv
}

func do(t *testing.T, method, url string, body []byte) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func errorCode(t *testing.T, method, url string, body []byte) errcode.Code {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return errcode.Code(resp.Header.Get(HeaderErrorCode))
}

func TestIndexGetAndPost(t *testing.T) {
	_, srv := newServer(t, 1, 0)
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		code, body := do(t, m, srv.URL+"/", nil)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "ok", body)
	}
}

func TestNotFoundAndNotAllowed(t *testing.T) {
	_, srv := newServer(t, 1, 0)

	code, body := do(t, http.MethodGet, srv.URL+"/nope", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Oops... Not found :(", body)

	code, body = do(t, http.MethodGet, srv.URL+"/brightness/bright", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Oops... Not found :(", body)

	code, body = do(t, http.MethodDelete, srv.URL+"/clear", nil)
	require.Equal(t, http.StatusMethodNotAllowed, code)
	require.Equal(t, "Oops... Not allowed :(", body)

	code, _ = do(t, http.MethodPut, srv.URL+"/fps/10", nil)
	require.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestErrorCodeHeader(t *testing.T) {
	_, srv := newServer(t, 1, 8)
	require.Equal(t, errcode.NotFound, errorCode(t, http.MethodGet, srv.URL+"/nope", nil))
	require.Equal(t, errcode.NotAllowed, errorCode(t, http.MethodDelete, srv.URL+"/clear", nil))
	require.Equal(t, errcode.TooLarge, errorCode(t, http.MethodPost, srv.URL+"/animation", make([]byte, 9)))
	require.Equal(t, errcode.InvalidParams, errorCode(t, http.MethodPost, srv.URL+"/animation?fps=fast", nil))
	require.Equal(t, errcode.Code(""), errorCode(t, http.MethodGet, srv.URL+"/", nil))
}

func TestBrightnessClamps(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	cases := map[string]float64{
		"-5":                   0,
		"500":                  1,
		"51":                   0.2,
		"0":                    0,
		"99999999999999999999": 1,
	}
	for in, want := range cases {
		code, body := do(t, http.MethodPost, srv.URL+"/brightness/"+in, nil)
		require.Equal(t, http.StatusOK, code, in)
		require.Equal(t, "ok", body)
		require.Equal(t, want, st.Brightness(), in)
	}
}

func TestFPSClamps(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	for in, want := range map[string]int{"0": 1, "1000": 100, "-3": 1, "60": 60} {
		code, _ := do(t, http.MethodGet, srv.URL+"/fps/"+in, nil)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, want, st.FPS(), in)
	}
}

func TestAnimationPushReportsFramesAndDelay(t *testing.T) {
	st, srv := newServer(t, 2, 0) // 6 bytes per frame

	code, body := do(t, http.MethodPost, srv.URL+"/animation", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "2,0.033333", body)
	require.Equal(t, 13, st.Buffered())

	code, body = do(t, http.MethodPost, srv.URL+"/animation?clear=1&fps=50", []byte{1, 2, 3, 4, 5, 6})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1,0.020000", body)
	require.Equal(t, 50, st.FPS())

	f, ok := st.PopFrameIfReady()
	require.True(t, ok)
	require.Equal(t, state.Frame{1, 2, 3, 4, 5, 6}, f)
	_, ok = st.PopFrameIfReady()
	require.False(t, ok)
}

func TestAnimationGetWithoutBody(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	code, body := do(t, http.MethodGet, srv.URL+"/animation?fps=1000", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "0,0.010000", body)
	require.Equal(t, 100, st.FPS())
	require.False(t, st.TakePushed())
}

func TestAnimationBadFPS(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	code, body := do(t, http.MethodPost, srv.URL+"/animation?fps=fast", []byte{1, 2, 3})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Oops... Bad request :(", body)
	require.Equal(t, 0, st.Buffered())
}

func TestAnimationTooLarge(t *testing.T) {
	st, srv := newServer(t, 1, 8)
	code, body := do(t, http.MethodPost, srv.URL+"/animation", make([]byte, 9))
	require.Equal(t, http.StatusRequestEntityTooLarge, code)
	require.Equal(t, "Oops... Too large :(", body)
	require.Equal(t, 0, st.Buffered())
}

func TestClearAndShutdown(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	st.PushBytes([]byte{1, 2})

	code, body := do(t, http.MethodGet, srv.URL+"/clear", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)
	require.Equal(t, 0, st.Buffered())

	code, _ = do(t, http.MethodPost, srv.URL+"/shutdown", nil)
	require.Equal(t, http.StatusOK, code)
	require.False(t, st.IsRunning())
}

func TestButtonCallback(t *testing.T) {
	st, srv := newServer(t, 1, 0)

	code, body := do(t, http.MethodGet, srv.URL+"/button_callback?url="+
		"http%3A%2F%2Fhome.local%2Fhook%3Fdevice%3Dstrip", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)
	u, ok := st.Webhook()
	require.True(t, ok)
	require.Equal(t, "http://home.local/hook?device=strip", u)

	do(t, http.MethodPost, srv.URL+"/button_callback", nil)
	_, ok = st.Webhook()
	require.False(t, ok)
}

func TestButtonCallbackWithoutScheme(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	cases := map[string]string{
		"example.com%2Fcb":          "http://example.com/cb",
		"192.168.1.5%3A8080%2Fcb":   "http://192.168.1.5:8080/cb",
		"localhost%3A9000%2Fhook":   "http://localhost:9000/hook",
		"https%3A%2F%2Fsecure%2Fcb": "https://secure/cb",
	}
	for in, want := range cases {
		code, body := do(t, http.MethodGet, srv.URL+"/button_callback?url="+in, nil)
		require.Equal(t, http.StatusOK, code, in)
		require.Equal(t, "ok", body)
		u, ok := st.Webhook()
		require.True(t, ok, in)
		require.Equal(t, want, u, in)
	}
}

func TestButtonCallbackRejectsBadURL(t *testing.T) {
	st, srv := newServer(t, 1, 0)
	st.SetWebhook("http://home.local/hook")

	for _, in := range []string{"ftp%3A%2F%2Fh%2Fx", "http%3A%2F%2F", "%3A%2F%2Fbad"} {
		code, body := do(t, http.MethodGet, srv.URL+"/button_callback?url="+in, nil)
		require.Equal(t, http.StatusBadRequest, code, in)
		require.Equal(t, "Oops... Bad request :(", body)
		require.Equal(t, errcode.InvalidParams,
			errorCode(t, http.MethodGet, srv.URL+"/button_callback?url="+in, nil))

		u, ok := st.Webhook()
		require.True(t, ok)
		require.Equal(t, "http://home.local/hook", u, in)
	}
}

func TestStatus(t *testing.T) {
	st, srv := newServer(t, 4, 0)
	st.PushBytes(make([]byte, 25))
	st.SetWebhook("http://x")

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))

	var ds types.DisplayState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ds))
	require.Equal(t, 4, ds.Pixels)
	require.Equal(t, 25, ds.BufferedBytes)
	require.Equal(t, 2, ds.BufferedFrames)
	require.True(t, ds.Webhook)
	require.True(t, ds.Running)
}

func TestParseLevel(t *testing.T) {
	v, err := parseLevel("-42")
	require.NoError(t, err)
	require.Equal(t, -42, v)

	v, err = parseLevel("-99999999999999999999")
	require.NoError(t, err)
	require.Equal(t, minInt, v)

	_, err = parseLevel("4x")
	require.Error(t, err)
}
