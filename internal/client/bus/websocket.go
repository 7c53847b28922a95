package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"nhooyr.io/websocket"
)

const (
	writeTimeout  = 5 * time.Second
	messageBuffer = 64
)

// Handler streams every message published on b to websocket clients.
// It is mounted by the interception proxy so the application process learns
// about queued operations.
func Handler(b *Bus[Message], logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.WarnContext(r.Context(), "Websocket accept failed", slog.String("error", err.Error()))
			return
		}
		defer conn.CloseNow()

		messages, unsubscribe := b.Subscribe(messageBuffer)
		defer unsubscribe()

		// Клиент ничего не присылает, CloseRead обрабатывает control frames
		ctx := conn.CloseRead(r.Context())

		logger.DebugContext(ctx, "Message subscriber connected", slog.String("remote", r.RemoteAddr))
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "bus closed")
					return
				}
				raw, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
				err = conn.Write(writeCtx, websocket.MessageText, raw)
				cancel()
				if err != nil {
					logger.DebugContext(ctx, "Message subscriber gone", slog.String("error", err.Error()))
					return
				}
			}
		}
	})
}

// Listen dials a Handler at url and republishes received messages on b
// until ctx is done, reconnecting with exponential backoff. Messages of
// unknown types are dropped.
func Listen(ctx context.Context, url string, b *Bus[Message], logger *slog.Logger) error {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := listenOnce(ctx, url, b, logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WarnContext(ctx, "Message stream interrupted, reconnecting", slog.String("error", err.Error()))
		return retry.RetryableError(err)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func listenOnce(ctx context.Context, url string, b *Bus[Message], logger *slog.Logger) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial message stream: %w", err)
	}
	defer conn.CloseNow()

	logger.InfoContext(ctx, "Connected to message stream", slog.String("url", url))
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			logger.WarnContext(ctx, "Dropping message", slog.String("error", err.Error()))
			continue
		}
		b.Publish(msg)
	}
}
