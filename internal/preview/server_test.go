package preview

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/render"
)

const waitFor = 5 * time.Second

type recordingHandler struct {
	events chan any
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan any, 32)}
}

func (h *recordingHandler) Viewport(msg contracts.ViewportMessage)     { h.events <- msg }
func (h *recordingHandler) Pointer(msg contracts.PointerMessage)       { h.events <- msg }
func (h *recordingHandler) BlockClick(msg contracts.BlockClickMessage) { h.events <- msg }
func (h *recordingHandler) Zoom(msg contracts.ZoomMessage)             { h.events <- msg }
func (h *recordingHandler) SurfaceAttached()                           { h.events <- "attached" }

func (h *recordingHandler) next(t *testing.T) any {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(waitFor):
		t.Fatal("no handler event")
		return nil
	}
}

func newTestServer(t *testing.T) (*Server, *recordingHandler, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0", "notes.md", render.NewRenderer())
	h := newRecordingHandler()
	s.SetHandler(h)
	require.NoError(t, s.Start(false))
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hs.Close()
		_ = s.Stop()
	})
	return s, h, hs
}

func attach(t *testing.T, hs *httptest.Server, h *recordingHandler) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	assert.Equal(t, "attached", h.next(t))
	return conn
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServesShellAndStyleSheet(t *testing.T) {
	_, _, hs := newTestServer(t)

	code, body := get(t, hs.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>notes.md</title>")

	code, body = get(t, hs.URL+"/assets/highlight.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, ".chroma")

	code, _ = get(t, hs.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRenderWithoutClient(t *testing.T) {
	s, _, _ := newTestServer(t)
	assert.ErrorIs(t, s.Render(contracts.ViewMessage{}), ErrNoClient)
	assert.ErrorIs(t, s.ScrollTo(contracts.ScrollToMessage{}), ErrNoClient)
}

func TestPushesViewsAndScrolls(t *testing.T) {
	s, h, hs := newTestServer(t)
	conn := attach(t, hs, h)

	require.Eventually(t, func() bool {
		return s.Render(contracts.ViewMessage{Session: "abc", Rev: 1, Scale: 1}) == nil
	}, waitFor, 10*time.Millisecond)

	var view contracts.ViewMessage
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, contracts.MessageTypeView, view.Type)
	assert.Equal(t, "abc", view.Session)

	require.NoError(t, s.ScrollTo(contracts.ScrollToMessage{Top: 120, Smooth: true}))
	var scroll contracts.ScrollToMessage
	require.NoError(t, conn.ReadJSON(&scroll))
	assert.Equal(t, contracts.MessageTypeScrollTo, scroll.Type)
	assert.Equal(t, 120.0, scroll.Top)
	assert.True(t, scroll.Smooth)
}

func TestDispatchesBrowserMessages(t *testing.T) {
	_, h, hs := newTestServer(t)
	conn := attach(t, hs, h)

	frames := []string{
		`{"type":"viewport","scroll_top":10,"view_height":700,"container_width":900}`,
		`not json`,
		`{"type":"unknown"}`,
		`{"type":"pointer","phase":"down","x":1,"y":2}`,
		`{"type":"block_click","page":2,"block_id":"b1"}`,
		`{"type":"zoom","action":"wheel","delta":-3}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	assert.Equal(t, contracts.ViewportMessage{Type: "viewport", ScrollTop: 10, ViewHeight: 700, ContainerWidth: 900}, h.next(t))
	assert.Equal(t, contracts.PointerMessage{Type: "pointer", Phase: contracts.PointerDown, X: 1, Y: 2}, h.next(t))
	assert.Equal(t, contracts.BlockClickMessage{Type: "block_click", Page: 2, BlockID: "b1"}, h.next(t))
	assert.Equal(t, contracts.ZoomMessage{Type: "zoom", Action: contracts.ZoomWheel, Delta: -3}, h.next(t))
}

func TestNewClientReplacesOld(t *testing.T) {
	s, h, hs := newTestServer(t)
	first := attach(t, hs, h)
	second := attach(t, hs, h)

	_, _, err := first.ReadMessage()
	assert.Error(t, err, "first client is closed")

	require.Eventually(t, func() bool {
		return s.Render(contracts.ViewMessage{Rev: 9}) == nil
	}, waitFor, 10*time.Millisecond)
	var view contracts.ViewMessage
	require.NoError(t, second.ReadJSON(&view))
	assert.Equal(t, uint64(9), view.Rev)
}

func TestServesLocalAssets(t *testing.T) {
	_, _, hs := newTestServer(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "pic.txt")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o600))

	encode := func(p string) string {
		return hs.URL + render.AssetPrefix + base64.RawURLEncoding.EncodeToString([]byte(p))
	}

	code, body := get(t, encode(path))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pixels", body)

	code, _ = get(t, encode("relative/pic.txt"))
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, encode(dir))
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, hs.URL+render.AssetPrefix+"!!!")
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(encode(path), "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestViewJSONShape(t *testing.T) {
	raw, err := json.Marshal(contracts.ViewMessage{
		Type: contracts.MessageTypeView,
		Pages: []contracts.PageFrame{{
			Index:  0,
			Blocks: []contracts.BlockFrame{{ID: "a", Cached: true}},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"blocks":[{"id":"a","cached":true}]`)
	assert.Contains(t, string(raw), `"total_height":0`)
}
