package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sritampatnaik/Magic-Canvas/internal/canvas"
	"github.com/sritampatnaik/Magic-Canvas/internal/compositor"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/hub"
	"github.com/sritampatnaik/Magic-Canvas/internal/identity"
	"github.com/sritampatnaik/Magic-Canvas/internal/transport"
)

const waitFor = 2 * time.Second

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type noImages struct{}

func (noImages) Load(context.Context, string) (image.Image, error) {
	return nil, errors.New("no images in tests")
}

type fakeMedia struct {
	mu       sync.Mutex
	uploads  [][]byte
	prompts  []string
	refs     []string
	genErr   error
	imageURL string
}

func (m *fakeMedia) Upload(_ context.Context, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, data)
	return "https://cdn.example/ref.png", nil
}

func (m *fakeMedia) Generate(_ context.Context, prompt, imageURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.refs = append(m.refs, imageURL)
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.imageURL, nil
}

type frameSource struct {
	frames []HandFrame
}

func (f *frameSource) Next(context.Context) (HandFrame, error) {
	if len(f.frames) == 0 {
		return HandFrame{}, io.EOF
	}
	next := f.frames[0]
	f.frames = f.frames[1:]
	return next, nil
}

func testOptions(h *hub.Hub, name string) Options {
	return Options{
		Connect: func(key string) transport.Channel {
			return transport.NewLocal(h, "room1", key, discard())
		},
		Identity:  identity.NewProvider(discard(), nil, nil),
		Profile:   identity.Profile{DisplayName: name},
		Width:     800,
		Height:    600,
		TickEvery: 5 * time.Millisecond,
		Renderer:  compositor.NewRenderer(noImages{}, discard()),
		Logger:    discard(),
	}
}

func join(t *testing.T, opts Options) *Session {
	t.Helper()
	s := New(opts)
	require.NoError(t, s.Join(context.Background()))
	t.Cleanup(s.Leave)
	return s
}

// pair joins two sessions and waits until each sees the other.
func pair(t *testing.T, tweak func(*Options)) (*Session, *Session) {
	t.Helper()
	h := hub.New(discard(), nil)
	optsA := testOptions(h, "Ada")
	if tweak != nil {
		tweak(&optsA)
	}
	a := join(t, optsA)
	b := join(t, testOptions(h, "Bob"))

	for _, s := range []*Session{a, b} {
		require.Eventually(t, func() bool {
			peers, err := s.Peers()
			return err == nil && len(peers) == 2
		}, waitFor, 5*time.Millisecond)
	}
	return a, b
}

func eventually(t *testing.T, s *Session, cond func(canvas.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := s.Snapshot()
		return err == nil && cond(snap)
	}, waitFor, 5*time.Millisecond)
}

func cursorOf(snap canvas.Snapshot, key string) (canvas.CursorView, bool) {
	for _, c := range snap.Cursors {
		if c.Key == key {
			return c, true
		}
	}
	return canvas.CursorView{}, false
}

func TestJoinRequiresProfile(t *testing.T) {
	h := hub.New(discard(), nil)
	opts := testOptions(h, "  ")
	s := New(opts)

	err := s.Join(context.Background())
	assert.ErrorIs(t, err, identity.ErrProfileRequired)

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestJoinPublishesPresenceAndTool(t *testing.T) {
	a, b := pair(t, nil)

	peers, err := b.Peers()
	require.NoError(t, err)
	require.Contains(t, peers, a.Key())
	assert.Equal(t, "Ada", peers[a.Key()].DisplayName)
	assert.Equal(t, domain.DefaultAvatarGlyph, peers[a.Key()].AvatarGlyph)
	assert.Equal(t, domain.ColorFromString(a.User().ID.String()), peers[a.Key()].ColorHex)

	state, brush, err := a.ToolState()
	require.NoError(t, err)
	assert.Equal(t, domain.ToolPointer, state.Tool)
	assert.Equal(t, peers[a.Key()].ColorHex, state.ColorHex)
	assert.Equal(t, float64(domain.DefaultBrushPx), brush)

	assert.ErrorIs(t, a.Join(context.Background()), ErrAlreadyJoined)
}

func TestPenStrokeStreamsToPeers(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, a.SetTool(domain.ToolPen))
	require.NoError(t, a.SetBrushSize(6))

	require.NoError(t, a.PointerDown(10, 10))
	require.NoError(t, a.PointerMove(20, 20))
	require.NoError(t, a.PointerMove(30, 30))
	require.NoError(t, a.PointerUp(30, 30))

	want := []domain.Point{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Strokes) == 1 && len(snap.Strokes[0].Points) == 3
	})

	snap, err := b.Snapshot()
	require.NoError(t, err)
	s := snap.Strokes[0]
	assert.Equal(t, want, s.Points)
	assert.Equal(t, 6.0, s.WidthPx)
	assert.Equal(t, domain.StrokeModeDraw, s.Mode)
	assert.Equal(t, a.User().ID.String(), s.AuthorUserID)

	local, err := a.Snapshot()
	require.NoError(t, err)
	require.Len(t, local.Strokes, 1)
	assert.Equal(t, want, local.Strokes[0].Points)

	// Moves after the stroke ended do not extend it.
	require.NoError(t, a.PointerMove(40, 40))
	require.NoError(t, a.SetColor("#ff0000"))
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return snap.Tools[a.Key()].ColorHex == "#ff0000"
	})
	snap, err = b.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Strokes[0].Points, 3)
}

func TestHeldPenOutlivesStaleStrokeEviction(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	a, b := pair(t, func(o *Options) {
		o.Now = clk.Now
		o.ActiveStrokeTTL = 30 * time.Second
	})
	require.NoError(t, a.SetTool(domain.ToolPen))

	require.NoError(t, a.PointerDown(10, 10))
	require.NoError(t, a.PointerMove(20, 20))
	clk.Advance(31 * time.Second)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, a.PointerMove(30, 30))
	require.NoError(t, a.PointerUp(30, 30))

	want := []domain.Point{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}
	local, err := a.Snapshot()
	require.NoError(t, err)
	require.Len(t, local.Strokes, 1)
	assert.Equal(t, want, local.Strokes[0].Points)

	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Strokes) == 1 && len(snap.Strokes[0].Points) == 3
	})
}

func TestEraserToolDrawsEraseStrokes(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, a.SetTool(domain.ToolEraser))
	require.NoError(t, a.PointerDown(5, 5))
	require.NoError(t, a.PointerUp(5, 5))

	eventually(t, b, func(snap canvas.Snapshot) bool { return len(snap.Strokes) == 1 })
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Strokes[0].IsErase())
	assert.Equal(t, float64(domain.EraserWidthPx), snap.Strokes[0].WidthPx)
}

func TestPointerToolDoesNotDraw(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, a.PointerDown(10, 10))
	require.NoError(t, a.PointerMove(50, 50))
	require.NoError(t, a.PointerUp(50, 50))
	require.NoError(t, a.SetTool(domain.ToolSelect))

	eventually(t, b, func(snap canvas.Snapshot) bool {
		return snap.Tools[a.Key()].Tool == domain.ToolSelect
	})
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Strokes)
}

func TestEraseAtRebroadcastsChangedStrokes(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, a.SetTool(domain.ToolPen))
	require.NoError(t, a.PointerDown(10, 10))
	require.NoError(t, a.PointerMove(100, 100))
	require.NoError(t, a.PointerUp(100, 100))
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Strokes) == 1 && len(snap.Strokes[0].Points) == 2
	})

	n, err := a.EraseAt(500, 500)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.EraseAt(12, 12)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Strokes) == 1 && len(snap.Strokes[0].Points) == 1
	})
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 100, Y: 100}, snap.Strokes[0].Points[0])
}

func TestSelectionLifecycle(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, a.SetTool(domain.ToolSelect))
	assert.False(t, a.CanGenerate())

	require.NoError(t, a.PointerDown(50, 10))
	require.NoError(t, a.PointerMove(10, 5))
	require.NoError(t, a.PointerUp(10, 5))

	want := domain.Rect{X: 10, Y: 5, W: 40, H: 5}
	rect, ok, err := a.Selection()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, rect)
	assert.True(t, a.CanGenerate())

	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Selections) == 1 && snap.Selections[0].Rect == want
	})
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, a.Key(), snap.Selections[0].Key)

	require.NoError(t, a.SetTool(domain.ToolPen))
	assert.False(t, a.CanGenerate())
	eventually(t, b, func(snap canvas.Snapshot) bool { return len(snap.Selections) == 0 })
}

func TestSetToolRejectsUnknownTool(t *testing.T) {
	a, _ := pair(t, nil)
	assert.ErrorIs(t, a.SetTool(domain.Tool("lasso")), ErrUnknownTool)
}

func TestCursorBroadcastsAreThrottled(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	a, b := pair(t, func(o *Options) { o.Now = clk.Now })

	near := func(x, y float64) func(canvas.Snapshot) bool {
		return func(snap canvas.Snapshot) bool {
			c, ok := cursorOf(snap, a.Key())
			return ok && abs(c.Pos.X-x) < 0.5 && abs(c.Pos.Y-y) < 0.5
		}
	}

	require.NoError(t, a.PointerMove(10, 10))
	eventually(t, b, near(10, 10))

	// Same instant: the second sample is held back.
	require.NoError(t, a.PointerMove(200, 200))
	require.NoError(t, a.SetColor("#123456"))
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return snap.Tools[a.Key()].ColorHex == "#123456"
	})
	time.Sleep(30 * time.Millisecond)
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.True(t, near(10, 10)(snap))

	// The trailing sample goes out on the next tick once the interval passed.
	clk.Advance(CursorInterval + time.Millisecond)
	eventually(t, b, near(200, 200))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestRemoteCursorIsClampedToLocalBounds(t *testing.T) {
	a, b := pair(t, nil)
	require.NoError(t, b.SetBounds(100, 100))
	require.NoError(t, a.PointerMove(700, 50))

	eventually(t, b, func(snap canvas.Snapshot) bool {
		c, ok := cursorOf(snap, a.Key())
		return ok && c.Pos == domain.Point{X: 100, Y: 50}
	})

	snap, err := a.Snapshot()
	require.NoError(t, err)
	own, ok := cursorOf(snap, a.Key())
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 700, Y: 50}, own.Pos)
}

func TestHandFramesDriveStrokesSelectionAndGestures(t *testing.T) {
	a, b := pair(t, nil)

	src := &frameSource{frames: []HandFrame{
		{Label: GesturePointingUp, X: 0.1, Y: 0.1},
		{Label: GestureClosedFist, X: 0.1, Y: 0.1},
		{Label: GestureClosedFist, X: 0.2, Y: 0.2},
		{Label: GestureOpenPalm, X: 0.2, Y: 0.2},
		{Label: GestureOpenPalm, X: 0.3, Y: 0.3},
		{Label: GestureVictory, X: 0.5, Y: 0.5},
		{Label: GestureVictory, X: 0.6, Y: 0.55},
	}}
	err := a.RunGestures(context.Background(), src)
	assert.ErrorIs(t, err, io.EOF)

	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Strokes) == 1 && len(snap.Selections) == 1
	})
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []domain.Point{{X: 80, Y: 60}, {X: 160, Y: 120}}, snap.Strokes[0].Points)
	assert.Equal(t, domain.Rect{X: 400, Y: 300, W: 80, H: 30}, snap.Selections[0].Rect)

	eventually(t, b, func(snap canvas.Snapshot) bool {
		c, ok := cursorOf(snap, a.Key())
		return ok && c.Gesture == "✌️"
	})
	assert.True(t, a.CanGenerate())
}

func TestRunGesturesStopsOnCancel(t *testing.T) {
	a, _ := pair(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := blockingSource{}
	assert.NoError(t, a.RunGestures(ctx, src))
}

type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (HandFrame, error) {
	<-ctx.Done()
	return HandFrame{}, ctx.Err()
}

func TestImagesAddAndMove(t *testing.T) {
	a, b := pair(t, nil)

	item, err := a.AddImage("https://cdn.example/cat.png", domain.Rect{X: 50, Y: 50, W: -40, H: 20})
	require.NoError(t, err)
	assert.Equal(t, domain.Rect{X: 10, Y: 50, W: 40, H: 20}, item.Bounds())

	eventually(t, b, func(snap canvas.Snapshot) bool { return len(snap.Images) == 1 })

	require.NoError(t, a.MoveImage(item.ID, 300, 200))
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Images) == 1 && snap.Images[0].X == 300 && snap.Images[0].Y == 200
	})

	assert.ErrorIs(t, a.MoveImage("missing", 1, 1), ErrImageNotFound)
}

func TestInvokeAction(t *testing.T) {
	a, _ := pair(t, nil)
	ctx := context.Background()

	require.NoError(t, a.InvokeAction(ctx, ActionChangeColor, json.RawMessage(`{"color":"#00ff00"}`)))
	require.NoError(t, a.InvokeAction(ctx, ActionChangeBrushSize, json.RawMessage(`{"size":500}`)))
	state, brush, err := a.ToolState()
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", state.ColorHex)
	assert.Equal(t, float64(maxBrushPx), brush)

	assert.Error(t, a.InvokeAction(ctx, ActionChangeColor, nil))
	assert.ErrorIs(t, a.InvokeAction(ctx, "summon_dragon", nil), ErrUnknownAction)
	assert.ErrorIs(t, a.InvokeAction(ctx, ActionGenerateImage, json.RawMessage(`{"prompt":"a cat"}`)), ErrGenerationDisabled)
}

func TestGeneratePlacesResultOverSelection(t *testing.T) {
	media := &fakeMedia{imageURL: "https://cdn.example/gen.png"}
	a, b := pair(t, func(o *Options) { o.Media = media })
	ctx := context.Background()

	_, err := a.Generate(ctx, "a cat")
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, a.SetTool(domain.ToolSelect))
	require.NoError(t, a.PointerDown(10, 10))
	require.NoError(t, a.PointerMove(50, 30))
	require.NoError(t, a.PointerUp(50, 30))

	item, err := a.Generate(ctx, "a cat")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/gen.png", item.SourceURL)
	assert.Equal(t, domain.Rect{X: 10, Y: 10, W: 40, H: 20}, item.Bounds())

	require.Len(t, media.uploads, 1)
	ref, err := png.Decode(bytes.NewReader(media.uploads[0]))
	require.NoError(t, err)
	assert.Equal(t, 40, ref.Bounds().Dx())
	assert.Equal(t, 20, ref.Bounds().Dy())
	assert.Equal(t, []string{"a cat"}, media.prompts)
	assert.Equal(t, []string{"https://cdn.example/ref.png"}, media.refs)

	assert.False(t, a.CanGenerate())
	eventually(t, b, func(snap canvas.Snapshot) bool {
		return len(snap.Images) == 1 && snap.Images[0].ID == item.ID && len(snap.Selections) == 0
	})
}

func TestGenerateFailureKeepsSelection(t *testing.T) {
	media := &fakeMedia{genErr: errors.New("upstream down")}
	a, _ := pair(t, func(o *Options) { o.Media = media })

	require.NoError(t, a.SetTool(domain.ToolSelect))
	require.NoError(t, a.PointerDown(0, 0))
	require.NoError(t, a.PointerMove(20, 20))

	_, err := a.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, media.genErr)
	assert.True(t, a.CanGenerate())
}

func TestLeaveUpdatesPeersAndClosesSession(t *testing.T) {
	a, b := pair(t, nil)

	a.Leave()
	a.Leave()

	require.Eventually(t, func() bool {
		peers, err := b.Peers()
		return err == nil && len(peers) == 1
	}, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, a.PointerMove(1, 1), ErrClosed)
	assert.ErrorIs(t, a.Join(context.Background()), ErrAlreadyJoined)
}

func TestHTTPMedia(t *testing.T) {
	var (
		mu     sync.Mutex
		upload uploadRequest
	)
	var disabled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/upload":
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&upload)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"url":"https://cdn.example/u.png"}`))
		case "/api/generate":
			if disabled.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"image generation is disabled"}`))
				return
			}
			var req generateRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Prompt == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"prompt is required"}`))
				return
			}
			_, _ = w.Write([]byte(`{"url":"https://cdn.example/g.png"}`))
		}
	}))
	defer srv.Close()

	m := NewHTTPMedia(srv.URL + "/")
	ctx := context.Background()

	url, err := m.Upload(ctx, []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/u.png", url)
	mu.Lock()
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png")), upload.DataURL)
	mu.Unlock()

	url, err = m.Generate(ctx, "cat", "https://cdn.example/u.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/g.png", url)

	_, err = m.Generate(ctx, "", "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "prompt is required"))

	disabled.Store(true)
	_, err = m.Generate(ctx, "cat", "")
	assert.ErrorIs(t, err, ErrGenerationDisabled)
}

func TestJSONGestureSource(t *testing.T) {
	src := NewJSONGestureSource(strings.NewReader(
		`{"label":"Closed_Fist","x":0.25,"y":0.5}` + "\n" + `{"label":"Open_Palm","x":0.3,"y":0.5}` + "\n",
	))
	ctx := context.Background()

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, HandFrame{Label: GestureClosedFist, X: 0.25, Y: 0.5}, f)

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, GestureOpenPalm, f.Label)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
