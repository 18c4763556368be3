// Command canvasbot is a headless canvas participant. It joins a room over
// the websocket channel, mirrors the shared canvas and periodically writes
// it to a PNG file. Hand frames may be piped in as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sritampatnaik/Magic-Canvas/internal/client"
	"github.com/sritampatnaik/Magic-Canvas/internal/compositor"
	"github.com/sritampatnaik/Magic-Canvas/internal/config"
	"github.com/sritampatnaik/Magic-Canvas/internal/identity"
	"github.com/sritampatnaik/Magic-Canvas/internal/transport"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoadClient()
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slug := cfg.Slug
	if slug == "" {
		created, err := createRoom(ctx, cfg.ServerURL)
		if err != nil {
			log.Error("failed to create room", sl.Err(err))
			os.Exit(1)
		}
		slug = created
		log.Info("created room", slog.String("slug", slug))
	}

	ident := identity.Open(cfg.IdentityPath, log)
	defer ident.Close()

	renderer := compositor.NewRenderer(compositor.NewHTTPLoader(nil, log), log)
	session := client.New(client.Options{
		Connect: func(key string) transport.Channel {
			return transport.NewWebsocket(transport.WebsocketOptions{
				ServerURL: cfg.ServerURL,
				Slug:      slug,
				Key:       key,
				Logger:    log,
			})
		},
		Identity:        ident,
		Profile:         identity.Profile{DisplayName: cfg.DisplayName, AvatarGlyph: cfg.Avatar},
		Width:           cfg.Width,
		Height:          cfg.Height,
		ActiveStrokeTTL: cfg.ActiveStrokeTTL,
		Renderer:        renderer,
		Media:           client.NewHTTPMedia(cfg.ServerURL),
		Logger:          log,
	})

	joinCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := session.Join(joinCtx)
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrProfileRequired) {
			log.Error("set display_name in the config before the first join")
		} else {
			log.Error("failed to join room", sl.Err(err))
		}
		os.Exit(1)
	}
	defer session.Leave()

	if cfg.GesturesFromStdin {
		go func() {
			if err := session.RunGestures(ctx, client.NewJSONGestureSource(os.Stdin)); err != nil {
				log.Warn("gesture input stopped", sl.Err(err))
			}
		}()
	}

	if cfg.SnapshotEvery <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(cfg.SnapshotEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeSnapshot(ctx, session, renderer, cfg.SnapshotPath); err != nil {
				log.Warn("failed to write snapshot", sl.Err(err))
			}
		}
	}
}

func createRoom(ctx context.Context, serverURL string) (string, error) {
	endpoint, err := url.JoinPath(serverURL, "/api/rooms")
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create room: status %d", resp.StatusCode)
	}
	var out struct {
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Slug, nil
}

func writeSnapshot(ctx context.Context, session *client.Session, renderer *compositor.Renderer, path string) error {
	snap, err := session.Snapshot()
	if err != nil {
		return err
	}
	img, err := renderer.Render(ctx, snap)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
