package chat

import (
	"sort"

	"github.com/chatd/database"
	"github.com/chatd/wire"
)

// ChatInfo 会话列表里的一行
type ChatInfo struct {
	ID          int64             `json:"id"`
	ChatName    string            `json:"chatName"`
	IsPinned    bool              `json:"isPinned"`
	IsArchived  bool              `json:"isArchived"`
	LastMessage *wire.MessageData `json:"lastMessage"`
}

// ChatList 会话列表聚合：归档/未归档/群/频道合成一份，
// 置顶优先，其余按最近活跃排序。
type ChatList struct {
	members  database.MemberStore
	folders  database.FolderStore
	messages database.MessageStore
	users    database.UserStore
	groups   database.GroupStore
	channels database.ChannelStore
	names    database.NameCache
}

// NewChatList NewChatList
func NewChatList(stores *database.Stores, names database.NameCache) *ChatList {
	return &ChatList{
		members:  stores.Members,
		folders:  stores.Folders,
		messages: stores.Messages,
		users:    stores.Users,
		groups:   stores.Groups,
		channels: stores.Channels,
		names:    names,
	}
}

// AllChats 归档与未归档会话的并集。对端已不存在的记录直接丢弃，
// 不会以残缺行的形式出现在列表里。
func (s *ChatList) AllChats(userID int64) ([]ChatInfo, error) {
	members, err := s.members.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	chats := make([]ChatInfo, 0, len(members))
	for _, member := range members {
		info, ok := s.resolve(userID, member.ChatID)
		if !ok {
			continue
		}
		info.IsPinned = member.IsPinned
		info.IsArchived = member.IsArchived
		chats = append(chats, info)
	}
	sortChats(chats)
	return chats, nil
}

// FolderChats 文件夹内的会话子集，置顶状态取文件夹本地的
func (s *ChatList) FolderChats(userID, folderID int64) ([]ChatInfo, error) {
	folder, err := s.folders.FindByID(folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil || folder.UserID != userID {
		return nil, ErrFolderNotFound
	}

	entries, err := s.folders.ListChats(folderID)
	if err != nil {
		return nil, err
	}
	chats := make([]ChatInfo, 0, len(entries))
	for _, entry := range entries {
		info, ok := s.resolve(userID, entry.ChatID)
		if !ok {
			continue
		}
		info.IsPinned = entry.IsPinned
		chats = append(chats, info)
	}
	sortChats(chats)
	return chats, nil
}

// SetArchived 幂等归档开关，只动本方的会话记录
func (s *ChatList) SetArchived(userID, chatID int64, archived bool) error {
	member, err := s.members.Get(userID, chatID)
	if err != nil {
		return err
	}
	if member == nil {
		return s.members.Upsert(&database.ChatMember{
			UserID: userID, ChatID: chatID, IsArchived: archived,
		})
	}
	return s.members.SetArchived(userID, chatID, archived)
}

// SetPinned 幂等置顶开关，只动本方的会话记录
func (s *ChatList) SetPinned(userID, chatID int64, pinned bool) error {
	member, err := s.members.Get(userID, chatID)
	if err != nil {
		return err
	}
	if member == nil {
		return s.members.Upsert(&database.ChatMember{
			UserID: userID, ChatID: chatID, IsPinned: pinned,
		})
	}
	return s.members.SetPinned(userID, chatID, pinned)
}

// LastMessage 单个会话的最后一条可见消息，没有返回 nil
func (s *ChatList) LastMessage(userID, chatID int64) (*database.Message, error) {
	switch wire.DetectDomain(chatID) {
	case wire.DomainChannel, wire.DomainGroup:
		return s.messages.LastEntityMessage(chatID)
	}
	return s.messages.LastPrivateMessage(userID, chatID)
}

// DeleteChat 删掉整个会话：双向消息、本方会话记录、文件夹里的残留项
func (s *ChatList) DeleteChat(userID, chatID int64) error {
	if err := s.messages.DeleteConversation(userID, chatID); err != nil {
		return err
	}
	if err := s.messages.DeleteConversation(chatID, userID); err != nil {
		return err
	}
	folders, err := s.folders.ListByUser(userID)
	if err != nil {
		return err
	}
	for _, folder := range folders {
		if err := s.folders.RemoveChat(folder.ID, chatID); err != nil {
			return err
		}
	}
	return s.members.Delete(userID, chatID)
}

// resolve 把一条会话记录补全成展示行；对端不存在返回 ok=false
func (s *ChatList) resolve(userID, chatID int64) (ChatInfo, bool) {
	name, ok := s.displayName(chatID)
	if !ok {
		return ChatInfo{}, false
	}
	info := ChatInfo{ID: chatID, ChatName: name}

	last, err := s.LastMessage(userID, chatID)
	if err == nil && last != nil {
		data := messageData(last)
		info.LastMessage = &data
	}
	return info, true
}

func (s *ChatList) displayName(chatID int64) (string, bool) {
	if name, ok := s.names.GetName(chatID); ok {
		return name, true
	}
	var name string
	switch wire.DetectDomain(chatID) {
	case wire.DomainChannel:
		channel, err := s.channels.FindByID(chatID)
		if err != nil || channel == nil {
			return "", false
		}
		name = channel.Name
	case wire.DomainGroup:
		group, err := s.groups.FindByID(chatID)
		if err != nil || group == nil {
			return "", false
		}
		name = group.Name
	default:
		user, err := s.users.FindByID(chatID)
		if err != nil || user == nil {
			return "", false
		}
		name = user.DisplayName()
	}
	s.names.SetName(chatID, name)
	return name, true
}

// sortChats 先按最近活跃降序，再稳定地把置顶的提到最前
func sortChats(chats []ChatInfo) {
	sort.SliceStable(chats, func(i, j int) bool {
		var ti, tj int64
		if chats[i].LastMessage != nil {
			ti = chats[i].LastMessage.SendTime
		}
		if chats[j].LastMessage != nil {
			tj = chats[j].LastMessage.SendTime
		}
		return ti > tj
	})
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].IsPinned && !chats[j].IsPinned
	})
}
