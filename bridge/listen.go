package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Listen connects to the server relay stream at wsURL and dispatches every
// message it receives until ctx is done or the connection drops.
func (b *Bridge) Listen(ctx context.Context, wsURL string, header http.Header) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		b.Dispatch(data)
	}
}
