// Package feed pushes advert changes to socket.io clients.
package feed

import (
	"net/http"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// RoomAll is joined by every connected socket.
const RoomAll socketio.Room = "adverts"

// OwnerRoom is the room following a single owner's adverts.
func OwnerRoom(owner string) socketio.Room {
	return socketio.Room("owner:" + owner)
}

type emitFunc func(rooms []socketio.Room, event string, payload any) error

// Hub is a core.EventPublisher backed by a socket.io server.
type Hub struct {
	server *socketio.Server
	emit   emitFunc
}

func NewHub() *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	ioo := socketio.NewServer(nil, opts)

	h := &Hub{server: ioo}
	h.emit = func(rooms []socketio.Room, event string, payload any) error {
		return ioo.To(rooms...).Emit(event, payload)
	}

	ioo.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		me := socket.Id()
		socket.Join(RoomAll)
		logrus.WithField("socket_id", me).Debug("Feed client connected")

		socket.On("follow-owner", func(datas ...any) {
			owner, ok := firstString(datas)
			if !ok {
				return
			}
			logrus.WithFields(logrus.Fields{"socket_id": me, "owner": owner}).Debug("Feed client follows owner")
			socket.Join(OwnerRoom(owner))
		})
		socket.On("unfollow-owner", func(datas ...any) {
			if owner, ok := firstString(datas); ok {
				socket.Leave(OwnerRoom(owner))
			}
		})
		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
		})
	})
	return h
}

func firstString(datas []any) (string, bool) {
	if len(datas) == 0 {
		return "", false
	}
	s, ok := datas[0].(string)
	return s, ok && s != ""
}

// Handler serves the socket.io endpoint.
func (h *Hub) Handler() http.Handler {
	return h.server.ServeHandler(nil)
}

// Publish emits the event to the global room and the owner's room. It never blocks the caller.
func (h *Hub) Publish(event core.AdvertEvent) {
	rooms := []socketio.Room{RoomAll}
	if event.Owner != "" {
		rooms = append(rooms, OwnerRoom(event.Owner))
	}
	go func() {
		if err := h.emit(rooms, event.Type, event); err != nil {
			logrus.WithError(err).WithField("event", event.Type).Warn("Failed to publish advert event")
		}
	}()
}

func (h *Hub) Close() {
	h.server.Close(nil)
}
