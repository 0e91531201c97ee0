package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/paint"
)

func startServer(t *testing.T) (*Server, *httptest.Server, context.CancelFunc) {
	t.Helper()
	c, err := canvas.New(16, canvas.WithClearColor(domain.White))
	if err != nil {
		t.Fatal(err)
	}
	s := paint.NewSession(c, nil, domain.Brush{Size: 2, Color: domain.Red, Shape: domain.ShapeQuad})
	srv := New(s, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Run(ctx) }()
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		hs.Close()
	})
	return srv, hs, cancel
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) image.Image {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return img
	}
}

func TestViewerGetsHelloAndInitialFrame(t *testing.T) {
	_, hs, _ := startServer(t)
	conn := dial(t, hs)
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "hello" || hello.Size != 16 || hello.Wrap != domain.WrapClamp {
		t.Fatalf("hello = %+v", hello)
	}
	img := readFrame(t, conn)
	if img.Bounds().Dx() != 16 {
		t.Fatalf("frame width = %d", img.Bounds().Dx())
	}
}

func TestViewerPaintsWithUV(t *testing.T) {
	srv, hs, _ := startServer(t)
	conn := dial(t, hs)
	readFrame(t, conn) // initial

	if err := conn.WriteJSON(Message{Type: "down", U: 0.5, V: 0.5}); err != nil {
		t.Fatal(err)
	}
	img := readFrame(t, conn)
	got := color.NRGBAModel.Convert(img.At(8, 8)).(color.NRGBA)
	if got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("centre after remote down = %+v", got)
	}
	if srv.Frames() != 1 {
		t.Fatalf("frames = %d", srv.Frames())
	}

	resp, err := http.Get(hs.URL + "/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || len(b) == 0 {
		t.Fatalf("frame.png status=%d len=%d", resp.StatusCode, len(b))
	}
}

func TestLocalSubmitIsBroadcast(t *testing.T) {
	srv, hs, _ := startServer(t)
	conn := dial(t, hs)
	readFrame(t, conn)
	var brush domain.Brush
	if err := srv.Do(context.Background(), func(s *paint.Session) { brush = s.Brush() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if brush.Size != 2 {
		t.Fatalf("brush = %+v", brush)
	}
	if !srv.Submit(paint.Event{Kind: paint.EventDown, Pos: domain.Vec2{X: 0.1, Y: 0.1}}) {
		t.Fatalf("submit rejected")
	}
	img := readFrame(t, conn)
	got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if got.R != 255 || got.G != 0 {
		t.Fatalf("(0,0) = %+v", got)
	}
}

func TestFrameBeforeFirstFlushIs404(t *testing.T) {
	_, hs, _ := startServer(t)
	resp, err := http.Get(hs.URL + "/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestDoAfterStop(t *testing.T) {
	srv, _, cancel := startServer(t)
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		err := srv.Do(context.Background(), func(*paint.Session) {})
		if errors.Is(err, ErrStopped) {
			if srv.Submit(paint.Event{Kind: paint.EventEnd}) {
				t.Fatalf("submit accepted after stop")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("loop did not stop")
}

func TestMessageEvent(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		kind paint.EventKind
	}{
		{`{"type":"drag","u":0.25,"v":0.75}`, true, paint.EventDrag},
		{`{"type":"scroll","dy":-2}`, true, paint.EventScroll},
		{`{"type":"end"}`, true, paint.EventEnd},
		{`{"type":"resize"}`, false, ""},
		{`{"type":"brush"}`, false, ""},
	}
	for _, tc := range cases {
		var m Message
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatal(err)
		}
		ev, ok := m.Event()
		if ok != tc.ok || ev.Kind != tc.kind {
			t.Fatalf("%s -> %+v %v", tc.in, ev, ok)
		}
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	c, _ := canvas.New(8)
	srv := New(paint.NewSession(c, nil, domain.Brush{Size: 1, Color: domain.Black}), Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	addrc := make(chan string, 1)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx, func(a string) { addrc <- a }) }()
	addr := <-addrc
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestInstanceName(t *testing.T) {
	if got := instanceName(`my\ box._texpaint._tcp.local.`); got != "my box" {
		t.Fatalf("got %q", got)
	}
	if (Peer{Addr: "10.0.0.2:7878"}).URL() != "ws://10.0.0.2:7878/ws" {
		t.Fatalf("url")
	}
}

func TestStoppedServerLeavesCanvas(t *testing.T) {
	c, err := canvas.New(8)
	if err != nil {
		t.Fatal(err)
	}
	s := paint.NewSession(c, nil, domain.Brush{Size: 1, Color: domain.Red, Shape: domain.ShapeQuad})
	srv := New(s, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() { _ = srv.Run(ctx); close(stopped) }()

	if err := srv.Do(context.Background(), func(s *paint.Session) { _ = s.Canvas().Flush() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	cancel()
	<-stopped
	before := srv.Frames()
	if before == 0 {
		t.Fatalf("no frame presented while running")
	}
	_ = c.Flush()
	if srv.Frames() != before {
		t.Fatalf("frames after stop = %d, want %d", srv.Frames(), before)
	}
}
