package websocket

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Client to server events.
const (
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventCodeChange = "codeChange"
	EventLeaveRoom  = "leaveRoom"
)

// Transport lifecycle events.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Server to client events.
const (
	EventRoomUsers  = "roomUsers"
	EventCodeUpdate = "codeUpdate"
	EventRoomError  = "roomError"
	EventRoomFull   = "roomFull"
)

const (
	msgRoomNotFound  = "Room does not exist"
	msgInvalidRoomID = "Invalid room id"
	msgOtherRoom     = "Already in another room"
)

// Event is one unit of work for the gateway loop.
type Event struct {
	Name   string
	ConnID string
	RoomID string
	Code   string

	query func()
}

type CodeChangePayload struct {
	RoomID string `mapstructure:"roomId"`
	Code   string `mapstructure:"code"`
}

var errMissingPayload = errors.New("missing payload")

// roomIDArg returns the first argument when it is a string. Anything else
// yields "" and is rejected by the gateway as an invalid id.
func roomIDArg(datas []any) string {
	if len(datas) == 0 {
		return ""
	}
	id, _ := datas[0].(string)
	return id
}

func decodeCodeChange(datas []any) (CodeChangePayload, error) {
	var payload CodeChangePayload
	if len(datas) == 0 || datas[0] == nil {
		return payload, errMissingPayload
	}
	if err := mapstructure.Decode(datas[0], &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", EventCodeChange, err)
	}
	if payload.RoomID == "" {
		return payload, fmt.Errorf("decode %s payload: missing roomId", EventCodeChange)
	}
	return payload, nil
}
