package hub

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/chatd/auth"
	"github.com/chatd/chat"
	"github.com/chatd/config"
	"github.com/chatd/database"
	"github.com/chatd/filelog"
	"github.com/chatd/wire"
)

// ErrSessionNotFound 要结束的会话不存在
var ErrSessionNotFound = errors.New("hub: session not found")

// Hub 服务中心：持有注册表、消息管道、会话列表和推送队列，
// 对外提供 websocket 握手和 HTTP 接口。
type Hub struct {
	upgrader *websocket.Upgrader
	config   *config.Config
	stores   *database.Stores

	registry *Registry
	codec    *auth.TokenCodec
	auth     *auth.Authenticator

	pipeline    *chat.Pipeline
	chats       *chat.ChatList
	memberCache *database.MemberCache
	names       database.NameCache

	notifier *Notifier
	journal  *filelog.FileLog

	quit chan struct{}
}

// NewHub 创建一个 Hub 对象，并初始化
func NewHub(cfg *config.Config, stores *database.Stores, names database.NameCache, sender PushSender) (*Hub, error) {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.Server.Origin == "*" {
				return true
			}
			rOrigin := r.Header.Get("Origin")
			if strings.Contains(cfg.Server.Origin, rOrigin) {
				return true
			}
			log.Println("refuse", rOrigin)
			return false
		},
	}

	journal, err := NewDeliveryJournal(cfg.Server.JournalFile, stores.PushLogs)
	if err != nil {
		return nil, errors.Wrap(err, "hub: open delivery journal")
	}

	codec := auth.NewTokenCodec(cfg.Server.Secret)

	hub := &Hub{
		upgrader:    upgrader,
		config:      cfg,
		stores:      stores,
		registry:    NewRegistry(),
		codec:       codec,
		auth:        auth.NewAuthenticator(codec, stores.Sessions),
		memberCache: database.NewMemberCache(),
		names:       names,
		journal:     journal,
		quit:        make(chan struct{}),
	}
	hub.notifier = NewNotifier(stores.Sessions, sender, journal)
	hub.pipeline = chat.NewPipeline(stores, hub.memberCache, names, hub, hub.notifier)
	hub.chats = chat.NewChatList(stores, names)

	return hub, nil
}

// Run 启动 HTTP 服务并阻塞到 Close
func (h *Hub) Run() {
	go httplisten(h, &h.config.Server)
	<-h.quit
}

// SendToUser 给目标用户的全部在线设备投一份事件。
// 快照外不持锁，失败不重试，离线设备走推送通道。
func (h *Hub) SendToUser(userID int64, action wire.Action, data interface{}) {
	h.SendToUserExcept(userID, "", action, data)
}

// SendToUserExcept 同 SendToUser，但跳过 exceptToken 对应的设备
func (h *Hub) SendToUserExcept(userID int64, exceptToken string, action wire.Action, data interface{}) {
	peers := h.registry.Connections(userID)
	if len(peers) == 0 {
		return
	}
	envelope, err := wire.NewEnvelope(action, data)
	if err != nil {
		log.Println("fanout envelope:", err)
		return
	}
	raw, err := envelope.Encode()
	if err != nil {
		log.Println("fanout encode:", err)
		return
	}
	for _, p := range peers {
		if exceptToken != "" && p.token == exceptToken {
			continue
		}
		p.PushMessage(raw, nil)
	}
}

// HasConnections 目标用户是否在线
func (h *Hub) HasConnections(userID int64) bool {
	return h.registry.HasConnections(userID)
}

// DismissSession 结束用户的一台设备：在线就按策略码踢掉，
// 会话记录无论在线与否都删
func (h *Hub) DismissSession(userID int64, sessionID int64) error {
	session, err := h.stores.Sessions.FindByID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	h.registry.ForceDisconnect(userID, session.Token, "session terminated")
	return h.stores.Sessions.Delete(userID, session.Token)
}

// Close close hub
func (h *Hub) Close() {
	h.clean()
	h.quit <- struct{}{}
}

// clean 踢掉全部在线设备，停掉推送队列与投递流水
func (h *Hub) clean() {
	for _, shard := range h.registry.shards {
		shard.mu.Lock()
		for _, devices := range shard.users {
			for _, p := range devices {
				p.Close()
			}
		}
		shard.users = make(map[int64]map[string]*ClientPeer)
		shard.mu.Unlock()
	}
	h.notifier.Close()
	h.journal.Close()
}
