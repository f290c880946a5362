package wire

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Action names the kind of event carried by an Envelope.
type Action string

const (
	// ActionNewMessage carries a freshly stored message to live devices.
	ActionNewMessage = Action("NEW_MESSAGE")
	// ActionDeleteMessage tells devices a message is gone for them.
	ActionDeleteMessage = Action("DELETE_MESSAGE")
	// ActionReadMessage is a read receipt for the counterpart.
	ActionReadMessage = Action("READ_MESSAGE")
	// ActionDeleteChat removes a chat from a device's list.
	ActionDeleteChat = Action("DELETE_CHAT")
	// ActionNewChat announces a chat the device did not know about.
	ActionNewChat = Action("NEW_CHAT")

	// ActionSendMessage is the inbound client request to send text to a chat.
	ActionSendMessage = Action("SEND_MESSAGE")
	// ActionDismissSession is the inbound request to kill another device's session.
	ActionDismissSession = Action("DISMISS_SESSION")
)

// Envelope is the unit written to and read from a websocket connection.
type Envelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into a ready-to-send envelope.
func NewEnvelope(action Action, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "wire: marshal envelope data")
	}
	return &Envelope{Action: action, Data: raw}, nil
}

// Encode renders the envelope as a JSON frame.
func (e *Envelope) Encode() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encode envelope")
	}
	return raw, nil
}

// Decode parses a JSON frame into the envelope.
func (e *Envelope) Decode(raw []byte) error {
	if err := json.Unmarshal(raw, e); err != nil {
		return errors.Wrap(err, "wire: decode envelope")
	}
	return nil
}

// Bind unmarshals the envelope payload into v.
func (e *Envelope) Bind(v interface{}) error {
	return errors.Wrap(json.Unmarshal(e.Data, v), "wire: bind envelope data")
}

// MessageData is the NEW_MESSAGE payload.
type MessageData struct {
	ID       int64  `json:"id"`
	SenderID int64  `json:"senderId"`
	ChatID   int64  `json:"chatId"`
	Text     string `json:"text"`
	SendTime int64  `json:"sendTime"`
	IsRead   bool   `json:"isRead"`
}

// DeleteMessageData is the DELETE_MESSAGE payload.
type DeleteMessageData struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
}

// ReadMessageData is the READ_MESSAGE payload.
type ReadMessageData struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
}

// DeleteChatData is the DELETE_CHAT payload.
type DeleteChatData struct {
	ChatID int64 `json:"chatId"`
}

// NewChatData is the NEW_CHAT payload.
type NewChatData struct {
	ChatID   int64  `json:"chatId"`
	ChatName string `json:"chatName"`
	IsPinned bool   `json:"isPinned"`
}

// SendMessageData is the inbound SEND_MESSAGE payload.
type SendMessageData struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

// DismissSessionData is the inbound DISMISS_SESSION payload.
type DismissSessionData struct {
	SessionID int64 `json:"sessionId"`
}

// Timestamp renders t the way clients expect message times: unix milliseconds.
func Timestamp(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
