package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"BCISpeller/internal/service/epoch"
)

// frame сообщение моста: пачка сэмплов, каждый — значения каналов.
type frame struct {
	Samples [][]float64 `json:"samples"`
}

// Bridge читает сэмплы из внешнего моста устройства по WebSocket и кладёт их
// в очередь.
type Bridge struct {
	url      string
	channels int
	queue    *Queue
	logger   *zap.SugaredLogger
}

func NewBridge(url string, channels int, queue *Queue, logger *zap.SugaredLogger) *Bridge {
	return &Bridge{url: url, channels: channels, queue: queue, logger: logger}
}

// Run подключается и читает до отмены контекста или разрыва соединения.
// Разрыв фатален: пропуск сэмплов сломает синхронизацию со стимулами.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.queue.Close()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		// Улучшим диагностику рукопожатия, если доступен HTTP-ответ.
		if resp != nil {
			return fmt.Errorf("acquisition bridge: не удалось подключиться к %s (HTTP %d): %w", b.url, resp.StatusCode, err)
		}
		return fmt.Errorf("acquisition bridge: не удалось подключиться к %s: %w", b.url, err)
	}
	b.logger.Infow("Acquisition bridge connected", "url", b.url)

	// Закрываем соединение при отмене, чтобы разблокировать ReadMessage
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	received := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				b.logger.Infow("Acquisition bridge closed", "received", received, "dropped", b.queue.Dropped())
				return nil
			}
			return fmt.Errorf("acquisition bridge: чтение: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		samples, err := b.parse(data)
		if err != nil {
			b.logger.Warnw("Acquisition bridge: bad frame", "error", err, "bytes", len(data))
			continue
		}
		for _, s := range samples {
			b.queue.Push(s)
		}
		received += len(samples)
	}
}

func (b *Bridge) parse(data []byte) ([]epoch.Sample, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make([]epoch.Sample, 0, len(f.Samples))
	for _, s := range f.Samples {
		if len(s) != b.channels {
			return nil, errors.New("acquisition bridge: неверное количество каналов")
		}
		out = append(out, epoch.Sample(s))
	}
	return out, nil
}
