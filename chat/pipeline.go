package chat

import (
	"log"

	"github.com/chatd/database"
	"github.com/chatd/wire"
)

const appName = "chatd"

// Fanout 在线投递出口，由连接中心实现。尽力而为，不回执不重试。
type Fanout interface {
	SendToUser(userID int64, action wire.Action, data interface{})
	SendToUserExcept(userID int64, exceptToken string, action wire.Action, data interface{})
	HasConnections(userID int64) bool
}

// Notifier 离线推送出口。提交即返回，失败只进日志。
type Notifier interface {
	Push(userID int64, title, body string, chatID int64)
}

// Pipeline 消息主流程：切分、入库、按会话域扇出、离线推送。
type Pipeline struct {
	messages database.MessageStore
	members  database.MemberStore
	users    database.UserStore
	groups   database.GroupStore
	channels database.ChannelStore

	memberCache *database.MemberCache
	names       database.NameCache

	fanout Fanout
	notify Notifier
}

// NewPipeline NewPipeline
func NewPipeline(
	stores *database.Stores,
	memberCache *database.MemberCache,
	names database.NameCache,
	fanout Fanout,
	notify Notifier,
) *Pipeline {
	return &Pipeline{
		messages:    stores.Messages,
		members:     stores.Members,
		users:       stores.Users,
		groups:      stores.Groups,
		channels:    stores.Channels,
		memberCache: memberCache,
		names:       names,
		fanout:      fanout,
		notify:      notify,
	}
}

// Send 把 text 发到 chatID。超长文本按序切块，每块一行消息记录；
// 块内先入库再扇出，第 N 块的副作用不会先于第 N-1 块被观察到。
// originToken 是发起设备的令牌，发送者其它设备会收到回显，发起设备不会；
// 传空串（HTTP 发送）时发送者所有设备都收到。
// 入库失败終止本次发送并返回已入库的块；扇出与推送失败从不影响入库结果。
func (p *Pipeline) Send(senderID, chatID int64, text string, originToken string) ([]*database.Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	domain := wire.DetectDomain(chatID)
	if domain == wire.DomainUnknown {
		// 未知域按私聊兜底处理，不扇出给对端
		log.Printf("send: unknown domain for chat %d, private fallback", chatID)
	}
	if domain == wire.DomainPrivate && chatID != senderID {
		p.ensureMembership(senderID, chatID)
		p.ensureMembership(chatID, senderID)
	}

	stored := make([]*database.Message, 0, 1)
	for _, part := range SplitText(text) {
		msg, err := p.messages.Insert(&database.Message{
			SenderID: senderID,
			ChatID:   chatID,
			Text:     part,
			IsRead:   senderID == chatID,
		})
		if err != nil {
			return stored, err
		}
		stored = append(stored, msg)
		p.dispatch(domain, msg, originToken)
	}
	return stored, nil
}

// dispatch 单块消息的在线扇出与离线推送
func (p *Pipeline) dispatch(domain wire.ChatDomain, msg *database.Message, originToken string) {
	data := messageData(msg)

	// 发送者其它设备的回显
	p.fanout.SendToUserExcept(msg.SenderID, originToken, wire.ActionNewMessage, data)

	switch domain {
	case wire.DomainPrivate:
		if msg.ChatID == msg.SenderID {
			return
		}
		p.fanout.SendToUser(msg.ChatID, wire.ActionNewMessage, data)
		if !p.fanout.HasConnections(msg.ChatID) {
			// 推送里的 chatId 是发送者 id，客户端据此打开对应会话
			p.notify.Push(msg.ChatID, p.chatName(wire.DomainPrivate, msg.SenderID), msg.Text, msg.SenderID)
		}
	case wire.DomainChannel, wire.DomainGroup:
		title := p.chatName(domain, msg.ChatID)
		for _, member := range p.chatMembers(domain, msg.ChatID) {
			if member == msg.SenderID {
				continue
			}
			p.fanout.SendToUser(member, wire.ActionNewMessage, data)
			if !p.fanout.HasConnections(member) {
				p.notify.Push(member, title, msg.Text, msg.ChatID)
			}
		}
	}
}

// Messages 拉取会话历史。私聊是双向合并、过滤本方软删行；
// 频道/群是一条共享时间线。
func (p *Pipeline) Messages(userID, chatID int64) ([]database.Message, error) {
	switch wire.DetectDomain(chatID) {
	case wire.DomainChannel, wire.DomainGroup:
		return p.messages.EntityHistory(chatID)
	}
	return p.messages.PrivateHistory(userID, chatID)
}

// Delete 删一条消息。forAll 时硬删并通知对端；否则只标记本方删除，
// 双方都删过即升级为硬删，不留孤行。与消息无关的操作者直接拒绝。
func (p *Pipeline) Delete(actingUserID, chatID, messageID int64, forAll bool) error {
	msg, err := p.messages.FindByID(messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	isSender := msg.SenderID == actingUserID
	isReceiver := msg.ChatID == actingUserID
	if !isSender && !isReceiver {
		return ErrNotParticipant
	}

	if forAll {
		if err := p.messages.Delete(messageID); err != nil {
			return err
		}
		p.signalDelete(msg, actingUserID)
		return nil
	}

	flags := database.MessageFlags{
		IsRead:            msg.IsRead,
		DeletedBySender:   msg.DeletedBySender,
		DeletedByReceiver: msg.DeletedByReceiver,
	}
	if escalateDelete(&flags, isSender, isReceiver) {
		return p.messages.Delete(messageID)
	}
	return p.messages.UpdateFlags(messageID, flags)
}

// escalateDelete 把操作方的删除标记落到 flags 上；两侧都删过时返回 true，
// 由调用方升级为硬删。发送方和接收方走同一段逻辑，不留两份分支。
// 自聊时操作者同时是两侧，一次删除即升级。
func escalateDelete(flags *database.MessageFlags, isSender, isReceiver bool) bool {
	if isSender {
		flags.DeletedBySender = true
	}
	if isReceiver {
		flags.DeletedByReceiver = true
	}
	return flags.DeletedBySender && flags.DeletedByReceiver
}

// MarkRead 已读标记，并向发送方发读回执
func (p *Pipeline) MarkRead(messageID int64) error {
	msg, err := p.messages.FindByID(messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	err = p.messages.UpdateFlags(messageID, database.MessageFlags{
		IsRead:            true,
		DeletedBySender:   msg.DeletedBySender,
		DeletedByReceiver: msg.DeletedByReceiver,
	})
	if err != nil {
		return err
	}
	p.fanout.SendToUser(msg.SenderID, wire.ActionReadMessage, wire.ReadMessageData{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
	})
	return nil
}

func (p *Pipeline) signalDelete(msg *database.Message, actingUserID int64) {
	data := wire.DeleteMessageData{ChatID: msg.ChatID, MessageID: msg.ID}
	p.fanout.SendToUser(msg.SenderID, wire.ActionDeleteMessage, data)
	switch wire.DetectDomain(msg.ChatID) {
	case wire.DomainPrivate:
		if msg.ChatID != msg.SenderID {
			p.fanout.SendToUser(msg.ChatID, wire.ActionDeleteMessage, data)
		}
	case wire.DomainChannel, wire.DomainGroup:
		for _, member := range p.chatMembers(wire.DetectDomain(msg.ChatID), msg.ChatID) {
			if member != msg.SenderID {
				p.fanout.SendToUser(member, wire.ActionDeleteMessage, data)
			}
		}
	}
}

// chatMembers 取频道/群成员，优先内存缓存，缺了再回源填充
func (p *Pipeline) chatMembers(domain wire.ChatDomain, chatID int64) []int64 {
	if members, ok := p.memberCache.Members(chatID); ok {
		return members
	}
	var members []int64
	var err error
	if domain == wire.DomainChannel {
		members, err = p.channels.Members(chatID)
	} else {
		members, err = p.groups.Members(chatID)
	}
	if err != nil {
		log.Printf("load members of %d: %v", chatID, err)
		return nil
	}
	p.memberCache.Put(chatID, members)
	return members
}

// chatName 推送标题用的会话名，带 24 小时缓存
func (p *Pipeline) chatName(domain wire.ChatDomain, chatID int64) string {
	if name, ok := p.names.GetName(chatID); ok {
		return name
	}
	var name string
	switch domain {
	case wire.DomainPrivate:
		if user, err := p.users.FindByID(chatID); err == nil && user != nil {
			name = user.DisplayName()
		}
	case wire.DomainChannel:
		if channel, err := p.channels.FindByID(chatID); err == nil && channel != nil {
			name = channel.Name
		}
	case wire.DomainGroup:
		if group, err := p.groups.FindByID(chatID); err == nil && group != nil {
			name = group.Name
		}
	}
	if name == "" {
		return appName
	}
	p.names.SetName(chatID, name)
	return name
}

// ensureMembership 首次互发消息时懒建会话记录，已有记录不动它的状态
func (p *Pipeline) ensureMembership(userID, chatID int64) {
	member, err := p.members.Get(userID, chatID)
	if err != nil {
		log.Printf("ensure membership %d/%d: %v", userID, chatID, err)
		return
	}
	if member != nil {
		return
	}
	if err := p.members.Upsert(&database.ChatMember{UserID: userID, ChatID: chatID}); err != nil {
		log.Printf("ensure membership %d/%d: %v", userID, chatID, err)
	}
}

func messageData(msg *database.Message) wire.MessageData {
	return wire.MessageData{
		ID:       msg.ID,
		SenderID: msg.SenderID,
		ChatID:   msg.ChatID,
		Text:     msg.Text,
		SendTime: wire.Timestamp(msg.SendTime),
		IsRead:   msg.IsRead,
	}
}
