package websocket

import (
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const maxHTTPBufferSize = 5000000

var localhostOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// NewSocketServer builds the Socket.IO server. With no allowed origins the
// desktop and localhost origins are accepted; "*" accepts any origin.
func NewSocketServer(allowedOrigins []string) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(maxHTTPBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigins(allowedOrigins),
		Credentials: true,
	})
	return socketio.NewServer(nil, opts)
}

func corsOrigins(allowed []string) any {
	if len(allowed) == 0 {
		return []any{"tauri://localhost", localhostOrigin}
	}
	origins := make([]any, 0, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return "*"
		}
		origins = append(origins, origin)
	}
	return origins
}

type socketTransport struct {
	srv *socketio.Server
}

// NewSocketTransport delivers events through each socket's private room.
func NewSocketTransport(srv *socketio.Server) Transport {
	return &socketTransport{srv: srv}
}

func (t *socketTransport) Emit(connID, event string, args ...any) error {
	return t.srv.To(socketio.Room(connID)).Emit(event, args...)
}

// Attach forwards client events of every new connection to gw.
func Attach(srv *socketio.Server, gw *Gateway) {
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := string(socket.Id())
		utils.Log().Printf("socket %v connected\n", me)
		gw.Submit(Event{Name: EventConnect, ConnID: me})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventCreateRoom, func(datas ...any) {
			gw.Submit(Event{Name: EventCreateRoom, ConnID: me, RoomID: roomIDArg(datas)})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventJoinRoom, func(datas ...any) {
			gw.Submit(Event{Name: EventJoinRoom, ConnID: me, RoomID: roomIDArg(datas)})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventCodeChange, func(datas ...any) {
			payload, err := decodeCodeChange(datas)
			if err != nil {
				logrus.WithField("conn_id", me).WithError(err).Debug("Dropping malformed edit")
				return
			}
			gw.Submit(Event{Name: EventCodeChange, ConnID: me, RoomID: payload.RoomID, Code: payload.Code})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventLeaveRoom, func(...any) {
			gw.Submit(Event{Name: EventLeaveRoom, ConnID: me})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventDisconnect, func(...any) {
			utils.Log().Printf("socket %v disconnected\n", me)
			gw.Submit(Event{Name: EventDisconnect, ConnID: me})
			socket.RemoveAllListeners("")
		})
	})
}
