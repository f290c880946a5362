package database

import (
	"github.com/go-xorm/xorm"
	"github.com/pkg/errors"
)

// Stores 打包全部 mysql 存储实现，便于装配
type Stores struct {
	Users    UserStore
	Sessions SessionStore
	Messages MessageStore
	Members  MemberStore
	Folders  FolderStore
	Groups   GroupStore
	Channels ChannelStore
	PushLogs PushLogStore
}

// NewMysqlStores 基于同一个 engine 构建全部存储
func NewMysqlStores(engine *xorm.Engine) *Stores {
	return &Stores{
		Users:    &MysqlUserStore{engine},
		Sessions: &MysqlSessionStore{engine},
		Messages: &MysqlMessageStore{engine},
		Members:  &MysqlMemberStore{engine},
		Folders:  &MysqlFolderStore{engine},
		Groups:   &MysqlGroupStore{engine},
		Channels: &MysqlChannelStore{engine},
		PushLogs: &MysqlPushLogStore{engine},
	}
}

// MysqlUserStore mysql user store
type MysqlUserStore struct {
	engine *xorm.Engine
}

// Create Create
func (s *MysqlUserStore) Create(user *User) error {
	_, err := s.engine.Insert(user)
	return errors.Wrap(err, "userStore.Create")
}

// FindByID FindByID
func (s *MysqlUserStore) FindByID(id int64) (*User, error) {
	user := &User{ID: id}
	has, err := s.engine.Get(user)
	if err != nil {
		return nil, errors.Wrap(err, "userStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return user, nil
}

// FindByLogin FindByLogin
func (s *MysqlUserStore) FindByLogin(login string) (*User, error) {
	user := &User{}
	has, err := s.engine.Where("login = ?", login).Get(user)
	if err != nil {
		return nil, errors.Wrap(err, "userStore.FindByLogin")
	}
	if !has {
		return nil, nil
	}
	return user, nil
}

// Search 按 username 前缀查找
func (s *MysqlUserStore) Search(prefix string) ([]User, error) {
	var users []User
	err := s.engine.Where("username like ?", prefix+"%").Find(&users)
	return users, errors.Wrap(err, "userStore.Search")
}

// UpdateProfile 更新资料字段
func (s *MysqlUserStore) UpdateProfile(user *User) error {
	_, err := s.engine.ID(user.ID).
		Cols("first_name", "last_name", "username", "bio").Update(user)
	return errors.Wrap(err, "userStore.UpdateProfile")
}

// MysqlSessionStore mysql session store
type MysqlSessionStore struct {
	engine *xorm.Engine
}

// Create Create
func (s *MysqlSessionStore) Create(session *Session) (*Session, error) {
	if _, err := s.engine.Insert(session); err != nil {
		return nil, errors.Wrap(err, "sessionStore.Create")
	}
	return session, nil
}

// FindActive 按 (userID, token) 查活跃会话，没有返回 nil
func (s *MysqlSessionStore) FindActive(userID int64, token string) (*Session, error) {
	session := &Session{}
	has, err := s.engine.Where("user_id = ? and token = ?", userID, token).Get(session)
	if err != nil {
		return nil, errors.Wrap(err, "sessionStore.FindActive")
	}
	if !has {
		return nil, nil
	}
	return session, nil
}

// FindByID FindByID
func (s *MysqlSessionStore) FindByID(id int64, userID int64) (*Session, error) {
	session := &Session{}
	has, err := s.engine.Where("id = ? and user_id = ?", id, userID).Get(session)
	if err != nil {
		return nil, errors.Wrap(err, "sessionStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return session, nil
}

// ListByUser ListByUser
func (s *MysqlSessionStore) ListByUser(userID int64) ([]Session, error) {
	var sessions []Session
	err := s.engine.Where("user_id = ?", userID).Find(&sessions)
	return sessions, errors.Wrap(err, "sessionStore.ListByUser")
}

// Delete Delete
func (s *MysqlSessionStore) Delete(userID int64, token string) error {
	_, err := s.engine.Where("user_id = ? and token = ?", userID, token).Delete(&Session{})
	return errors.Wrap(err, "sessionStore.Delete")
}

// DeleteByToken DeleteByToken
func (s *MysqlSessionStore) DeleteByToken(token string) error {
	_, err := s.engine.Where("token = ?", token).Delete(&Session{})
	return errors.Wrap(err, "sessionStore.DeleteByToken")
}

// DeleteAllExcept 结束该用户除当前设备外的全部会话
func (s *MysqlSessionStore) DeleteAllExcept(userID int64, token string) error {
	_, err := s.engine.Where("user_id = ? and token <> ?", userID, token).Delete(&Session{})
	return errors.Wrap(err, "sessionStore.DeleteAllExcept")
}

// UpdatePushToken UpdatePushToken
func (s *MysqlSessionStore) UpdatePushToken(token string, pushToken string) error {
	_, err := s.engine.Where("token = ?", token).
		Cols("push_token").Update(&Session{PushToken: pushToken})
	return errors.Wrap(err, "sessionStore.UpdatePushToken")
}

// MysqlMessageStore mysql message store
type MysqlMessageStore struct {
	engine *xorm.Engine
}

// Insert Insert
func (s *MysqlMessageStore) Insert(msg *Message) (*Message, error) {
	if _, err := s.engine.Insert(msg); err != nil {
		return nil, errors.Wrap(err, "messageStore.Insert")
	}
	return msg, nil
}

// FindByID FindByID
func (s *MysqlMessageStore) FindByID(id int64) (*Message, error) {
	msg := &Message{ID: id}
	has, err := s.engine.Get(msg)
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return msg, nil
}

// PrivateHistory 双向取私聊消息，各方向过滤本方软删行，发送时间升序
func (s *MysqlMessageStore) PrivateHistory(userID, chatID int64) ([]Message, error) {
	var messages []Message
	err := s.engine.
		Where("sender_id = ? and chat_id = ? and deleted_by_sender = ?", userID, chatID, false).
		Or("sender_id = ? and chat_id = ? and deleted_by_receiver = ?", chatID, userID, false).
		Asc("send_time").
		Find(&messages)
	return messages, errors.Wrap(err, "messageStore.PrivateHistory")
}

// EntityHistory 频道/群共享时间线
func (s *MysqlMessageStore) EntityHistory(chatID int64) ([]Message, error) {
	var messages []Message
	err := s.engine.Where("chat_id = ?", chatID).Asc("send_time").Find(&messages)
	return messages, errors.Wrap(err, "messageStore.EntityHistory")
}

// LastPrivateMessage 私聊最后一条对本方可见的消息，没有返回 nil
func (s *MysqlMessageStore) LastPrivateMessage(userID, chatID int64) (*Message, error) {
	msg := &Message{}
	has, err := s.engine.
		Where("sender_id = ? and chat_id = ? and deleted_by_sender = ?", userID, chatID, false).
		Or("sender_id = ? and chat_id = ? and deleted_by_receiver = ?", chatID, userID, false).
		Desc("send_time").
		Get(msg)
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.LastPrivateMessage")
	}
	if !has {
		return nil, nil
	}
	return msg, nil
}

// LastEntityMessage 频道/群最后一条消息，没有返回 nil
func (s *MysqlMessageStore) LastEntityMessage(chatID int64) (*Message, error) {
	msg := &Message{}
	has, err := s.engine.Where("chat_id = ?", chatID).Desc("send_time").Get(msg)
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.LastEntityMessage")
	}
	if !has {
		return nil, nil
	}
	return msg, nil
}

// UpdateFlags 只改三个标记位，消息本体不可变
func (s *MysqlMessageStore) UpdateFlags(id int64, flags MessageFlags) error {
	_, err := s.engine.ID(id).
		Cols("is_read", "deleted_by_sender", "deleted_by_receiver").
		Update(&Message{
			IsRead:            flags.IsRead,
			DeletedBySender:   flags.DeletedBySender,
			DeletedByReceiver: flags.DeletedByReceiver,
		})
	return errors.Wrap(err, "messageStore.UpdateFlags")
}

// Delete 硬删除
func (s *MysqlMessageStore) Delete(id int64) error {
	_, err := s.engine.ID(id).Delete(&Message{})
	return errors.Wrap(err, "messageStore.Delete")
}

// DeleteConversation 清空 userID 发往 chatID 的全部消息
func (s *MysqlMessageStore) DeleteConversation(userID, chatID int64) error {
	_, err := s.engine.Where("sender_id = ? and chat_id = ?", userID, chatID).Delete(&Message{})
	return errors.Wrap(err, "messageStore.DeleteConversation")
}

// MysqlMemberStore mysql chat member store
type MysqlMemberStore struct {
	engine *xorm.Engine
}

// Get Get
func (s *MysqlMemberStore) Get(userID, chatID int64) (*ChatMember, error) {
	member := &ChatMember{}
	has, err := s.engine.Where("user_id = ? and chat_id = ?", userID, chatID).Get(member)
	if err != nil {
		return nil, errors.Wrap(err, "memberStore.Get")
	}
	if !has {
		return nil, nil
	}
	return member, nil
}

// Upsert 建立或更新会话记录
func (s *MysqlMemberStore) Upsert(member *ChatMember) error {
	existing, err := s.Get(member.UserID, member.ChatID)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = s.engine.Insert(member)
	} else {
		member.ID = existing.ID
		_, err = s.engine.ID(existing.ID).
			Cols("is_archived", "is_pinned").Update(member)
	}
	return errors.Wrap(err, "memberStore.Upsert")
}

// ListByUser 归档与未归档一并返回
func (s *MysqlMemberStore) ListByUser(userID int64) ([]ChatMember, error) {
	var members []ChatMember
	err := s.engine.Where("user_id = ?", userID).Find(&members)
	return members, errors.Wrap(err, "memberStore.ListByUser")
}

// SetArchived 幂等
func (s *MysqlMemberStore) SetArchived(userID, chatID int64, archived bool) error {
	_, err := s.engine.Where("user_id = ? and chat_id = ?", userID, chatID).
		Cols("is_archived").Update(&ChatMember{IsArchived: archived})
	return errors.Wrap(err, "memberStore.SetArchived")
}

// SetPinned 幂等
func (s *MysqlMemberStore) SetPinned(userID, chatID int64, pinned bool) error {
	_, err := s.engine.Where("user_id = ? and chat_id = ?", userID, chatID).
		Cols("is_pinned").Update(&ChatMember{IsPinned: pinned})
	return errors.Wrap(err, "memberStore.SetPinned")
}

// Delete Delete
func (s *MysqlMemberStore) Delete(userID, chatID int64) error {
	_, err := s.engine.Where("user_id = ? and chat_id = ?", userID, chatID).Delete(&ChatMember{})
	return errors.Wrap(err, "memberStore.Delete")
}

// MysqlFolderStore mysql folder store
type MysqlFolderStore struct {
	engine *xorm.Engine
}

// Save 新建或改名
func (s *MysqlFolderStore) Save(folder *ChatFolder) (*ChatFolder, error) {
	var err error
	if folder.ID == 0 {
		_, err = s.engine.Insert(folder)
	} else {
		_, err = s.engine.ID(folder.ID).Cols("name").Update(folder)
	}
	if err != nil {
		return nil, errors.Wrap(err, "folderStore.Save")
	}
	return folder, nil
}

// FindByID FindByID
func (s *MysqlFolderStore) FindByID(id int64) (*ChatFolder, error) {
	folder := &ChatFolder{ID: id}
	has, err := s.engine.Get(folder)
	if err != nil {
		return nil, errors.Wrap(err, "folderStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return folder, nil
}

// ListByUser ListByUser
func (s *MysqlFolderStore) ListByUser(userID int64) ([]ChatFolder, error) {
	var folders []ChatFolder
	err := s.engine.Where("user_id = ?", userID).Find(&folders)
	return folders, errors.Wrap(err, "folderStore.ListByUser")
}

// Delete 删除文件夹并清空其中会话
func (s *MysqlFolderStore) Delete(id int64) error {
	if _, err := s.engine.Where("folder_id = ?", id).Delete(&FolderChat{}); err != nil {
		return errors.Wrap(err, "folderStore.Delete")
	}
	_, err := s.engine.ID(id).Delete(&ChatFolder{})
	return errors.Wrap(err, "folderStore.Delete")
}

// AddChat AddChat
func (s *MysqlFolderStore) AddChat(folderID, chatID int64) error {
	existing := &FolderChat{}
	has, err := s.engine.Where("folder_id = ? and chat_id = ?", folderID, chatID).Get(existing)
	if err != nil {
		return errors.Wrap(err, "folderStore.AddChat")
	}
	if has {
		return nil
	}
	_, err = s.engine.Insert(&FolderChat{FolderID: folderID, ChatID: chatID})
	return errors.Wrap(err, "folderStore.AddChat")
}

// RemoveChat RemoveChat
func (s *MysqlFolderStore) RemoveChat(folderID, chatID int64) error {
	_, err := s.engine.Where("folder_id = ? and chat_id = ?", folderID, chatID).Delete(&FolderChat{})
	return errors.Wrap(err, "folderStore.RemoveChat")
}

// ListChats ListChats
func (s *MysqlFolderStore) ListChats(folderID int64) ([]FolderChat, error) {
	var chats []FolderChat
	err := s.engine.Where("folder_id = ?", folderID).Find(&chats)
	return chats, errors.Wrap(err, "folderStore.ListChats")
}

// SetChatPinned 文件夹内置顶，独立于全局会话记录
func (s *MysqlFolderStore) SetChatPinned(folderID, chatID int64, pinned bool) error {
	_, err := s.engine.Where("folder_id = ? and chat_id = ?", folderID, chatID).
		Cols("is_pinned").Update(&FolderChat{IsPinned: pinned})
	return errors.Wrap(err, "folderStore.SetChatPinned")
}

// MysqlGroupStore mysql group store
type MysqlGroupStore struct {
	engine *xorm.Engine
}

// Create Create
func (s *MysqlGroupStore) Create(group *Group) error {
	_, err := s.engine.Insert(group)
	return errors.Wrap(err, "groupStore.Create")
}

// FindByID FindByID
func (s *MysqlGroupStore) FindByID(id int64) (*Group, error) {
	group := &Group{ID: id}
	has, err := s.engine.Get(group)
	if err != nil {
		return nil, errors.Wrap(err, "groupStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return group, nil
}

// Delete 仅群主可删，成员记录一并清理
func (s *MysqlGroupStore) Delete(ownerID, id int64) error {
	if _, err := s.engine.Where("group_id = ?", id).Delete(&GroupMember{}); err != nil {
		return errors.Wrap(err, "groupStore.Delete")
	}
	_, err := s.engine.Where("id = ? and owner_id = ?", id, ownerID).Delete(&Group{})
	return errors.Wrap(err, "groupStore.Delete")
}

// Join 幂等入群
func (s *MysqlGroupStore) Join(groupID, userID int64) error {
	existing := &GroupMember{}
	has, err := s.engine.Where("group_id = ? and user_id = ?", groupID, userID).Get(existing)
	if err != nil {
		return errors.Wrap(err, "groupStore.Join")
	}
	if has {
		return nil
	}
	_, err = s.engine.Insert(&GroupMember{GroupID: groupID, UserID: userID})
	return errors.Wrap(err, "groupStore.Join")
}

// Leave Leave
func (s *MysqlGroupStore) Leave(groupID, userID int64) error {
	_, err := s.engine.Where("group_id = ? and user_id = ?", groupID, userID).Delete(&GroupMember{})
	return errors.Wrap(err, "groupStore.Leave")
}

// Members 群成员 id 列表
func (s *MysqlGroupStore) Members(groupID int64) ([]int64, error) {
	var members []GroupMember
	if err := s.engine.Where("group_id = ?", groupID).Find(&members); err != nil {
		return nil, errors.Wrap(err, "groupStore.Members")
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// MysqlChannelStore mysql channel store
type MysqlChannelStore struct {
	engine *xorm.Engine
}

// Create Create
func (s *MysqlChannelStore) Create(channel *Channel) error {
	_, err := s.engine.Insert(channel)
	return errors.Wrap(err, "channelStore.Create")
}

// FindByID FindByID
func (s *MysqlChannelStore) FindByID(id int64) (*Channel, error) {
	channel := &Channel{ID: id}
	has, err := s.engine.Get(channel)
	if err != nil {
		return nil, errors.Wrap(err, "channelStore.FindByID")
	}
	if !has {
		return nil, nil
	}
	return channel, nil
}

// Delete 仅频道主可删
func (s *MysqlChannelStore) Delete(ownerID, id int64) error {
	if _, err := s.engine.Where("channel_id = ?", id).Delete(&ChannelMember{}); err != nil {
		return errors.Wrap(err, "channelStore.Delete")
	}
	_, err := s.engine.Where("id = ? and owner_id = ?", id, ownerID).Delete(&Channel{})
	return errors.Wrap(err, "channelStore.Delete")
}

// Join 幂等订阅
func (s *MysqlChannelStore) Join(channelID, userID int64) error {
	existing := &ChannelMember{}
	has, err := s.engine.Where("channel_id = ? and user_id = ?", channelID, userID).Get(existing)
	if err != nil {
		return errors.Wrap(err, "channelStore.Join")
	}
	if has {
		return nil
	}
	_, err = s.engine.Insert(&ChannelMember{ChannelID: channelID, UserID: userID})
	return errors.Wrap(err, "channelStore.Join")
}

// Leave Leave
func (s *MysqlChannelStore) Leave(channelID, userID int64) error {
	_, err := s.engine.Where("channel_id = ? and user_id = ?", channelID, userID).Delete(&ChannelMember{})
	return errors.Wrap(err, "channelStore.Leave")
}

// Members 订阅者 id 列表
func (s *MysqlChannelStore) Members(channelID int64) ([]int64, error) {
	var members []ChannelMember
	if err := s.engine.Where("channel_id = ?", channelID).Find(&members); err != nil {
		return nil, errors.Wrap(err, "channelStore.Members")
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// MysqlPushLogStore mysql push log store
type MysqlPushLogStore struct {
	engine *xorm.Engine
}

// Save 批量写入，由 filelog 的刷新回调驱动
func (s *MysqlPushLogStore) Save(logs []*PushLog) error {
	if len(logs) == 0 {
		return nil
	}
	_, err := s.engine.Insert(&logs)
	return errors.Wrap(err, "pushLogStore.Save")
}
