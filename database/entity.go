package database

import (
	"time"
)

// User 账号与资料。ID 由 wire.GenerateID(DomainPrivate) 生成，非自增。
type User struct {
	ID        int64     `xorm:"pk 'id'" json:"id"`
	Login     string    `xorm:"varchar(64) unique" json:"-"`
	Password  string    `xorm:"varchar(128)" json:"-"`
	FirstName string    `xorm:"varchar(64)" json:"firstName"`
	LastName  string    `xorm:"varchar(64)" json:"lastName"`
	Username  string    `xorm:"varchar(64)" json:"username"`
	Bio       string    `xorm:"varchar(256)" json:"bio"`
	CreateAt  time.Time `xorm:"created" json:"-"`
}

// DisplayName 会话列表中展示的名字
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

// Session 一台已登陆设备。一个用户可同时有多个 session。
type Session struct {
	ID         int64     `xorm:"pk autoincr 'id'" json:"id"`
	UserID     int64     `xorm:"index" json:"userId"`
	Token      string    `xorm:"varchar(128) unique" json:"-"`
	DeviceName string    `xorm:"varchar(64)" json:"deviceName"`
	PushToken  string    `xorm:"varchar(256)" json:"-"`
	CreateAt   time.Time `xorm:"created" json:"createdAt"`
}

// Message 聊天消息。除两个删除标记与已读标记外不可变。
// ChatID 是寻址目标：私聊时为对方用户 id（或自己的 id，即“收藏夹”），
// 频道/群消息时为频道/群的实体 id。
type Message struct {
	ID                int64     `xorm:"pk autoincr 'id'" json:"id"`
	SenderID          int64     `xorm:"index" json:"senderId"`
	ChatID            int64     `xorm:"index" json:"chatId"`
	Text              string    `xorm:"varchar(4096)" json:"text"`
	SendTime          time.Time `xorm:"created" json:"-"`
	IsRead            bool      `json:"isRead"`
	DeletedBySender   bool      `json:"-"`
	DeletedByReceiver bool      `json:"-"`
}

// ChatMember 用户视角的一条会话记录，归档/置顶状态与对方无关。
// 首次互发消息时延迟建立。
type ChatMember struct {
	ID         int64 `xorm:"pk autoincr 'id'"`
	UserID     int64 `xorm:"index unique(user_chat)"`
	ChatID     int64 `xorm:"unique(user_chat)"`
	IsArchived bool
	IsPinned   bool
}

// ChatFolder 用户自定义的会话分组
type ChatFolder struct {
	ID     int64  `xorm:"pk autoincr 'id'" json:"id"`
	UserID int64  `xorm:"index" json:"userId"`
	Name   string `xorm:"varchar(64)" json:"name"`
}

// FolderChat 文件夹内的一条会话，置顶状态独立于全局会话记录
type FolderChat struct {
	ID       int64 `xorm:"pk autoincr 'id'"`
	FolderID int64 `xorm:"index unique(folder_chat)"`
	ChatID   int64 `xorm:"unique(folder_chat)"`
	IsPinned bool
}

// Group 群。ID 由 wire.GenerateID(DomainGroup) 生成。
type Group struct {
	ID       int64     `xorm:"pk 'id'" json:"id"`
	OwnerID  int64     `json:"ownerId"`
	Name     string    `xorm:"varchar(64)" json:"name"`
	Bio      string    `xorm:"varchar(256)" json:"bio"`
	CreateAt time.Time `xorm:"created" json:"-"`
}

// GroupMember 群成员
type GroupMember struct {
	ID      int64 `xorm:"pk autoincr 'id'"`
	GroupID int64 `xorm:"index unique(group_user)"`
	UserID  int64 `xorm:"unique(group_user)"`
}

// Channel 频道。ID 由 wire.GenerateID(DomainChannel) 生成。
type Channel struct {
	ID       int64     `xorm:"pk 'id'" json:"id"`
	OwnerID  int64     `json:"ownerId"`
	Name     string    `xorm:"varchar(64)" json:"name"`
	Bio      string    `xorm:"varchar(256)" json:"bio"`
	Link     string    `xorm:"varchar(64)" json:"link"`
	IsPublic bool      `json:"isPublic"`
	CreateAt time.Time `xorm:"created" json:"-"`
}

// ChannelMember 频道订阅者
type ChannelMember struct {
	ID        int64 `xorm:"pk autoincr 'id'"`
	ChannelID int64 `xorm:"index unique(channel_user)"`
	UserID    int64 `xorm:"unique(channel_user)"`
}

// PushLog 推送/投递日志，由 filelog 批量落库，仅用于排障
type PushLog struct {
	ID       int64 `xorm:"pk autoincr 'id'"`
	UserID   int64 `xorm:"index"`
	ChatID   int64
	Outcome  string    `xorm:"varchar(32)"`
	Detail   string    `xorm:"varchar(512)"`
	CreateAt time.Time `xorm:"created"`
}
