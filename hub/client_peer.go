package hub

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatd/peer"
	"github.com/chatd/wire"
)

// ClientPeer 一台已通过握手鉴权的在线设备
type ClientPeer struct {
	*peer.Peer
	hub    *Hub
	userID int64
	token  string
}

// OnMessage 处理设备发来的一帧
func (p *ClientPeer) OnMessage(raw []byte) error {
	var envelope wire.Envelope
	if err := envelope.Decode(raw); err != nil {
		return err
	}

	switch envelope.Action {
	case wire.ActionSendMessage:
		var data wire.SendMessageData
		if err := envelope.Bind(&data); err != nil {
			return err
		}
		// originToken 传本设备令牌：发送者其它设备回显，本设备不回显
		if _, err := p.hub.pipeline.Send(p.userID, data.ChatID, data.Text, p.token); err != nil {
			log.Printf("user %d send to %d: %v", p.userID, data.ChatID, err)
		}
	case wire.ActionDismissSession:
		var data wire.DismissSessionData
		if err := envelope.Bind(&data); err != nil {
			return err
		}
		if err := p.hub.DismissSession(p.userID, data.SessionID); err != nil {
			log.Printf("user %d dismiss session %d: %v", p.userID, data.SessionID, err)
		}
	default:
		log.Printf("user %d unknown action %q", p.userID, envelope.Action)
	}
	return nil
}

// OnDisconnect 连接断开，确定性释放注册表项
func (p *ClientPeer) OnDisconnect() error {
	p.hub.registry.Unregister(p.userID, p.token)
	log.Printf("user %d device disconnected", p.userID)
	return nil
}

func newClientPeer(h *Hub, conn *websocket.Conn, userID int64, token string) *ClientPeer {
	clientPeer := &ClientPeer{
		hub:    h,
		userID: userID,
		token:  token,
	}

	p := peer.NewPeer(token, &peer.Config{
		Listeners: &peer.MessageListeners{
			OnMessage:    clientPeer.OnMessage,
			OnDisconnect: clientPeer.OnDisconnect,
		},
		WriteWait:       time.Duration(h.config.Peer.WriteWait) * time.Second,
		PongWait:        time.Duration(h.config.Peer.PongWait) * time.Second,
		PingPeriod:      time.Duration(h.config.Peer.PingPeriod) * time.Second,
		MaxMessageSize:  h.config.Peer.MaxMessageSize,
		MessageQueueLen: 32,
	})

	clientPeer.Peer = p
	clientPeer.SetConnection(conn)

	return clientPeer
}
