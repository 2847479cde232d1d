package proto

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope for every message exchanged between client and server.
// Type selects the variant; Data carries the variant payload and is absent for
// pure-signal frames (login_success, room_status request).
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	// TypeChat carries chat text: raw from the client, formatted room notices
	// from the server.
	TypeChat = "chat"
	// TypeChangeRoom asks the server to move the session to another room.
	TypeChangeRoom = "change_room"
	// TypeRoomStatus requests (client) or delivers (server) the room listing.
	TypeRoomStatus = "room_status"
	// TypeServerBroadcast is an operator announcement delivered to every room.
	TypeServerBroadcast = "server_broadcast"
	// TypeLoginSuccess confirms authentication. No payload.
	TypeLoginSuccess = "login_success"
	// TypeLoginDenied rejects a login or register attempt with a reason.
	TypeLoginDenied = "login_denied"
	// TypeLogin submits credentials for an existing account.
	TypeLogin = "login"
	// TypeRegister creates an account and logs in with the same credentials.
	TypeRegister = "register"
)

// CredentialsData is the payload of login and register frames.
type CredentialsData struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// ChatData is the payload of chat frames in both directions.
type ChatData struct {
	Text string `json:"text"`
}

// ChangeRoomData names the room the client wants to move to.
type ChangeRoomData struct {
	Room string `json:"room"`
}

// StatusData is the server's room listing reply.
type StatusData struct {
	Listing string `json:"listing"`
}

// DeniedData explains why authentication was refused.
type DeniedData struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// NewLogin builds a login frame.
func NewLogin(user, pass string) Frame {
	return mustFrame(TypeLogin, CredentialsData{User: user, Pass: pass})
}

// NewRegister builds a register frame.
func NewRegister(user, pass string) Frame {
	return mustFrame(TypeRegister, CredentialsData{User: user, Pass: pass})
}

// NewChat builds a chat frame carrying text.
func NewChat(text string) Frame {
	return mustFrame(TypeChat, ChatData{Text: text})
}

// NewChangeRoom builds a change_room request.
func NewChangeRoom(room string) Frame {
	return mustFrame(TypeChangeRoom, ChangeRoomData{Room: room})
}

// NewRoomStatusRequest builds the payload-less room_status request.
func NewRoomStatusRequest() Frame {
	return Frame{Type: TypeRoomStatus}
}

// NewRoomStatus builds the server's room listing reply.
func NewRoomStatus(listing string) Frame {
	return mustFrame(TypeRoomStatus, StatusData{Listing: listing})
}

// NewServerBroadcast builds an operator announcement frame.
func NewServerBroadcast(text string) Frame {
	return mustFrame(TypeServerBroadcast, ChatData{Text: text})
}

// NewLoginSuccess builds the payload-less success signal.
func NewLoginSuccess() Frame {
	return Frame{Type: TypeLoginSuccess}
}

// NewLoginDenied builds a denial with a machine code and human reason.
func NewLoginDenied(code, reason string) Frame {
	return mustFrame(TypeLoginDenied, DeniedData{Code: code, Reason: reason})
}

func mustFrame(frameType string, payload any) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs contain only strings; marshal cannot fail.
		panic(fmt.Sprintf("proto: marshal %s payload: %v", frameType, err))
	}
	return Frame{Type: frameType, Data: data}
}
