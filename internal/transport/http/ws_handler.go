package http

import (
	"encoding/json"
	"log"
	"net/http"

	"trivia-session-service/internal/game"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	session  *game.Session
	upgrader websocket.Upgrader
}

func NewWSHandler(session *game.Session) *WSHandler {
	return &WSHandler{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	AvatarRef string `json:"avatarRef"`
}

type answerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and bridges them to the
// session: inbound frames become commands, session updates become
// gameUpdate/answerFeedback frames. Identity is the clientId query
// parameter, or a generated id held for the connection's lifetime.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.session.Subscribe(clientID)
	defer cancel()
	defer h.session.Leave(clientID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				var msg outboundMessage[any]
				switch {
				case update.Feedback != nil:
					msg = outboundMessage[any]{Type: "answerFeedback", Payload: *update.Feedback}
				case update.Snapshot != nil:
					msg = outboundMessage[any]{Type: "gameUpdate", Payload: *update.Snapshot}
				default:
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendOrDrop(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid join payload"}})
				continue
			}
			h.session.Join(clientID, payload.Name, payload.IsHost, payload.AvatarRef)
		case "submitAnswer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendOrDrop(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			h.session.SubmitAnswer(clientID, payload.OptionIndex)
		case "hostStartGame":
			h.session.StartGame(clientID)
		case "hostNextQuestion":
			h.session.NextQuestion(clientID)
		case "hostResetGame":
			h.session.ResetGame(clientID)
		default:
			sendOrDrop(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// sendOrDrop queues msg for the writer, giving up once the writer has
// exited: a connection whose write side failed must not wedge the
// reader loop behind a full send buffer.
func sendOrDrop(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-writerDone:
	}
}
