package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// Websocket input encodings.
const (
	EncodingPCM  = "pcm16"
	EncodingOpus = "opus"
)

const writeWait = 10 * time.Second

// ControlMessage is a JSON text frame exchanged with the browser client.
type ControlMessage struct {
	Type string `json:"type"` // "ready", "stop", "error", "event"
	Data any    `json:"data,omitempty"`
}

// WebSocketDevice streams microphone audio from a browser and plays replies
// back over the same connection. Binary frames carry audio; text frames
// carry ControlMessage values.
type WebSocketDevice struct {
	conn    *websocket.Conn
	inRate  int
	outRate int

	frames chan []int16
	done   chan struct{}

	readMu  sync.Mutex
	pending []int16

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketDevice starts reading frames from conn. Opus input is decoded
// to 16kHz, so inRate is ignored for that encoding.
func NewWebSocketDevice(conn *websocket.Conn, encoding string, inRate, outRate int) *WebSocketDevice {
	if encoding == EncodingOpus {
		inRate = 16000
	}
	d := &WebSocketDevice{
		conn:    conn,
		inRate:  inRate,
		outRate: outRate,
		frames:  make(chan []int16, 64),
		done:    make(chan struct{}),
	}
	go d.readLoop(encoding)
	return d
}

func (d *WebSocketDevice) InputRate() int  { return d.inRate }
func (d *WebSocketDevice) OutputRate() int { return d.outRate }

// Done is closed when the peer disconnects or the device is closed.
func (d *WebSocketDevice) Done() <-chan struct{} {
	return d.done
}

func (d *WebSocketDevice) readLoop(encoding string) {
	defer d.Close()

	var dec *codec.OpusDecoder
	if encoding == EncodingOpus {
		dec = codec.NewOpusDecoder()
	}

	for {
		mt, data, err := d.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket audio read ended", slog.String("error", err.Error()))
			}
			return
		}

		switch mt {
		case websocket.TextMessage:
			var msg ControlMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == "stop" {
				return
			}
		case websocket.BinaryMessage:
			pcm := data
			if dec != nil {
				if pcm, err = dec.Decode(data); err != nil {
					slog.Debug("dropping undecodable opus frame", slog.String("error", err.Error()))
					continue
				}
			}
			select {
			case d.frames <- engine.BytesToSamples(pcm):
			case <-d.done:
				return
			}
		}
	}
}

// ReadBlock returns buffered samples, waiting for the next frame when none
// are pending. It returns fewer than len(buf) samples rather than wait for
// a second frame.
func (d *WebSocketDevice) ReadBlock(ctx context.Context, buf []int16) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	for len(d.pending) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-d.done:
			return 0, ErrClosed
		case frame := <-d.frames:
			d.pending = frame
		}
	}

	n := copy(buf, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *WebSocketDevice) WriteChunk(ctx context.Context, pcm []byte) error {
	return d.write(ctx, websocket.BinaryMessage, pcm)
}

// SendControl writes a JSON control message to the client.
func (d *WebSocketDevice) SendControl(ctx context.Context, msg ControlMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return d.write(ctx, websocket.TextMessage, b)
}

func (d *WebSocketDevice) write(ctx context.Context, mt int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-d.done:
		return ErrClosed
	default:
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := d.conn.WriteMessage(mt, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// Close sends a close frame and releases the connection.
func (d *WebSocketDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		d.writeMu.Lock()
		_ = d.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		d.writeMu.Unlock()
		err = d.conn.Close()
	})
	return err
}
