package httpapi

import (
	"net/http"
	"time"

	"netinspect/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	liveWriteWait = 2 * time.Second
	livePingEvery = 30 * time.Second
	liveBuffer    = 256
)

// live 把存储变化事件推送给 websocket 客户端
type live struct {
	svc      Backend
	log      logger.Logger
	upgrader websocket.Upgrader
}

func newLive(svc Backend, l logger.Logger) *live {
	return &live{
		svc:      svc,
		log:      l,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (lv *live) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ch, err := lv.svc.Subscribe(liveBuffer)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer lv.svc.Unsubscribe(id)

	c, err := lv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()
	lv.log.Debug("实时连接已建立", "subscriber", string(id))

	// 只读不处理，用来发现客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingEvery)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			lv.log.Debug("实时连接已断开", "subscriber", string(id))
			return
		case evt, ok := <-ch:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(liveWriteWait))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.WriteJSON(evt); err != nil {
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
