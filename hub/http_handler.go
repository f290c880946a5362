package hub

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatd/chat"
	"github.com/chatd/config"
	"github.com/chatd/database"
	"github.com/chatd/wire"
)

// start http server ,this function must be in a routine
func httplisten(hub *Hub, conf *config.ServerConfig) {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleClientWebSocket(hub, w, r)
	})

	mux.HandleFunc("/login", hub.handleLogin)
	mux.HandleFunc("/register", hub.handleRegister)

	mux.HandleFunc("/logout", hub.requireAuth(hub.handleLogout))
	mux.HandleFunc("/sessions", hub.requireAuth(hub.handleSessions))
	mux.HandleFunc("/sessionCount", hub.requireAuth(hub.handleSessionCount))
	mux.HandleFunc("/session/terminate", hub.requireAuth(hub.handleTerminateSession))
	mux.HandleFunc("/terminateAllSessions", hub.requireAuth(hub.handleTerminateAllSessions))
	mux.HandleFunc("/updatePushToken", hub.requireAuth(hub.handleUpdatePushToken))

	mux.HandleFunc("/users/search", hub.requireAuth(hub.handleSearchUsers))
	mux.HandleFunc("/profile", hub.requireAuth(hub.handleUpdateProfile))

	mux.HandleFunc("/message", hub.requireAuth(hub.handleSendMessage))
	mux.HandleFunc("/messages", hub.requireAuth(hub.handleMessages))
	mux.HandleFunc("/message/delete", hub.requireAuth(hub.handleDeleteMessage))
	mux.HandleFunc("/message/read", hub.requireAuth(hub.handleReadMessage))

	mux.HandleFunc("/chats", hub.requireAuth(hub.handleChats))
	mux.HandleFunc("/chat/archive", hub.requireAuth(hub.handleArchiveChat))
	mux.HandleFunc("/chat/pin", hub.requireAuth(hub.handlePinChat))
	mux.HandleFunc("/chat/delete", hub.requireAuth(hub.handleDeleteChat))

	mux.HandleFunc("/folders", hub.requireAuth(hub.handleFolders))
	mux.HandleFunc("/folder", hub.requireAuth(hub.handleSaveFolder))
	mux.HandleFunc("/folder/delete", hub.requireAuth(hub.handleDeleteFolder))
	mux.HandleFunc("/folder/chats", hub.requireAuth(hub.handleFolderChats))
	mux.HandleFunc("/folder/addChat", hub.requireAuth(hub.handleFolderAddChat))
	mux.HandleFunc("/folder/removeChat", hub.requireAuth(hub.handleFolderRemoveChat))
	mux.HandleFunc("/folder/pin", hub.requireAuth(hub.handleFolderPin))

	mux.HandleFunc("/group", hub.requireAuth(hub.handleCreateGroup))
	mux.HandleFunc("/group/delete", hub.requireAuth(hub.handleDeleteGroup))
	mux.HandleFunc("/group/invite", hub.requireAuth(hub.handleGroupInvite))
	mux.HandleFunc("/group/leave", hub.requireAuth(hub.handleGroupLeave))
	mux.HandleFunc("/group/remove", hub.requireAuth(hub.handleGroupRemove))
	mux.HandleFunc("/group/members", hub.requireAuth(hub.handleGroupMembers))

	mux.HandleFunc("/channel", hub.requireAuth(hub.handleCreateChannel))
	mux.HandleFunc("/channel/delete", hub.requireAuth(hub.handleDeleteChannel))
	mux.HandleFunc("/channel/join", hub.requireAuth(hub.handleChannelJoin))
	mux.HandleFunc("/channel/leave", hub.requireAuth(hub.handleChannelLeave))

	addr := fmt.Sprintf("%s:%d", conf.ListenIP, conf.ListenPort)
	log.Println("listen on", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Println("ListenAndServe:", err)
	}
}

// 处理来自客户端设备的 websocket 握手。令牌随 query 带上来，
// 校验不过按策略码断开，不进注册表。
func handleClientWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	if token == "" {
		closeRejected(conn, "no token")
		return
	}
	userID, ok := hub.auth.Authenticate(token)
	if !ok {
		closeRejected(conn, "invalid token")
		return
	}

	clientPeer := newClientPeer(hub, conn, userID, token)
	hub.registry.Register(userID, token, clientPeer)
	log.Printf("user %d device connected", userID)
}

func closeRejected(conn *websocket.Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseSessionPolicy, reason))
	conn.Close()
}

type apiHandler func(w http.ResponseWriter, r *http.Request, userID int64, token string)

// requireAuth HTTP 请求的鉴权闸门，握手之外的接口都从这里过
func (h *Hub) requireAuth(next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "token not found")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		userID, ok := h.auth.Authenticate(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "session not found")
			return
		}
		next(w, r, userID, token)
	}
}

type credentials struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	DeviceName string `json:"deviceName"`
}

func (h *Hub) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !readBody(w, r, &body) {
		return
	}
	if body.Login == "" || body.Password == "" || body.DeviceName == "" {
		writeError(w, http.StatusBadRequest, "login, password and deviceName are required")
		return
	}

	user, err := h.stores.Users.FindByLogin(strings.TrimSpace(body.Login))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "wrong login or password")
		return
	}

	token, err := h.openSession(user.ID, body.DeviceName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Hub) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !readBody(w, r, &body) {
		return
	}
	if body.Login == "" || body.Password == "" || body.DeviceName == "" {
		writeError(w, http.StatusBadRequest, "login, password and deviceName are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	user := &database.User{
		ID:       wire.GenerateID(wire.DomainPrivate),
		Login:    strings.TrimSpace(body.Login),
		Password: string(hash),
	}
	if err := h.stores.Users.Create(user); err != nil {
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}

	token, err := h.openSession(user.ID, body.DeviceName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Hub) openSession(userID int64, deviceName string) (string, error) {
	token := h.codec.Sign(userID)
	_, err := h.stores.Sessions.Create(&database.Session{
		UserID:     userID,
		Token:      token,
		DeviceName: strings.TrimSpace(deviceName),
	})
	return token, err
}

func (h *Hub) handleLogout(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	if err := h.stores.Sessions.Delete(userID, token); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.registry.Unregister(userID, token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleSessions(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	sessions, err := h.stores.Sessions.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// 当前设备不在"其它设备"列表里
	others := make([]database.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Token != token {
			others = append(others, s)
		}
	}
	writeJSON(w, http.StatusOK, others)
}

func (h *Hub) handleSessionCount(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	sessions, err := h.stores.Sessions.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(sessions)})
}

func (h *Hub) handleTerminateSession(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		SessionID int64 `json:"sessionId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.DismissSession(userID, body.SessionID); err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleTerminateAllSessions(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	sessions, err := h.stores.Sessions.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.stores.Sessions.DeleteAllExcept(userID, token); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// 其它设备如果还在线，逐台踢掉
	for _, s := range sessions {
		if s.Token != token {
			h.registry.ForceDisconnect(userID, s.Token, "session terminated")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleUpdatePushToken(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		PushToken string `json:"token"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if body.PushToken == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.stores.Sessions.UpdatePushToken(token, body.PushToken); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleSearchUsers(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	users, err := h.stores.Users.Search(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Hub) handleUpdateProfile(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
		Bio       string `json:"bio"`
	}
	if !readBody(w, r, &body) {
		return
	}
	err := h.stores.Users.UpdateProfile(&database.User{
		ID:        userID,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Username:  body.Username,
		Bio:       body.Bio,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// 改了名字，缓存里的旧名作废
	h.names.DelName(userID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleSendMessage(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChatID int64  `json:"chatId"`
		Text   string `json:"text"`
	}
	if !readBody(w, r, &body) {
		return
	}
	// HTTP 发送没有发起设备的概念，发送者所有设备都收回显
	stored, err := h.pipeline.Send(userID, body.ChatID, body.Text, "")
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Hub) handleMessages(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	chatID := queryInt64(r, "chatId")
	if chatID == 0 {
		writeError(w, http.StatusBadRequest, "chatId is required")
		return
	}
	messages, err := h.pipeline.Messages(userID, chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Hub) handleDeleteMessage(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChatID    int64 `json:"chatId"`
		MessageID int64 `json:"messageId"`
		ForAll    bool  `json:"forAll"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.pipeline.Delete(userID, body.ChatID, body.MessageID, body.ForAll); err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleReadMessage(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		MessageID int64 `json:"messageId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.pipeline.MarkRead(body.MessageID); err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleChats(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	chats, err := h.chats.AllChats(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *Hub) handleArchiveChat(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChatID   int64 `json:"chatId"`
		Archived bool  `json:"archived"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.chats.SetArchived(userID, body.ChatID, body.Archived); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handlePinChat(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChatID int64 `json:"chatId"`
		Pinned bool  `json:"pinned"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.chats.SetPinned(userID, body.ChatID, body.Pinned); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleDeleteChat(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChatID int64 `json:"chatId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.chats.DeleteChat(userID, body.ChatID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.SendToUser(userID, wire.ActionDeleteChat, wire.DeleteChatData{ChatID: body.ChatID})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleFolders(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	folders, err := h.stores.Folders.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *Hub) handleSaveFolder(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	folder, err := h.stores.Folders.Save(&database.ChatFolder{ID: body.ID, UserID: userID, Name: body.Name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *Hub) handleDeleteFolder(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		FolderID int64 `json:"folderId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Folders.Delete(body.FolderID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleFolderChats(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	folderID := queryInt64(r, "folderId")
	chats, err := h.chats.FolderChats(userID, folderID)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *Hub) handleFolderAddChat(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		FolderID int64 `json:"folderId"`
		ChatID   int64 `json:"chatId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Folders.AddChat(body.FolderID, body.ChatID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleFolderRemoveChat(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		FolderID int64 `json:"folderId"`
		ChatID   int64 `json:"chatId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Folders.RemoveChat(body.FolderID, body.ChatID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleFolderPin(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		FolderID int64 `json:"folderId"`
		ChatID   int64 `json:"chatId"`
		Pinned   bool  `json:"pinned"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Folders.SetChatPinned(body.FolderID, body.ChatID, body.Pinned); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleCreateGroup(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		Name string `json:"name"`
		Bio  string `json:"bio"`
	}
	if !readBody(w, r, &body) {
		return
	}
	group := &database.Group{
		ID:      wire.GenerateID(wire.DomainGroup),
		OwnerID: userID,
		Name:    body.Name,
		Bio:     body.Bio,
	}
	if err := h.stores.Groups.Create(group); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.stores.Groups.Join(group.ID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Upsert(&database.ChatMember{UserID: userID, ChatID: group.ID})
	h.memberCache.Invalidate(group.ID)
	writeJSON(w, http.StatusOK, map[string]int64{"id": group.ID})
}

func (h *Hub) handleDeleteGroup(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		GroupID int64 `json:"groupId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Groups.Delete(userID, body.GroupID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.memberCache.Invalidate(body.GroupID)
	h.names.DelName(body.GroupID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleGroupInvite(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		GroupID int64 `json:"groupId"`
		UserID  int64 `json:"userId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	group, err := h.stores.Groups.FindByID(body.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err := h.stores.Groups.Join(body.GroupID, body.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Upsert(&database.ChatMember{UserID: body.UserID, ChatID: body.GroupID})
	h.memberCache.Invalidate(body.GroupID)

	// 新成员的设备直接看到这个会话出现在列表里
	h.SendToUser(body.UserID, wire.ActionNewChat, wire.NewChatData{
		ChatID:   group.ID,
		ChatName: group.Name,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleGroupLeave(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		GroupID int64 `json:"groupId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Groups.Leave(body.GroupID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Delete(userID, body.GroupID)
	h.memberCache.Invalidate(body.GroupID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleGroupRemove(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		GroupID int64 `json:"groupId"`
		UserID  int64 `json:"userId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	group, err := h.stores.Groups.FindByID(body.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if group == nil || group.OwnerID != userID {
		writeError(w, http.StatusBadRequest, "only the owner can remove members")
		return
	}
	if err := h.stores.Groups.Leave(body.GroupID, body.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Delete(body.UserID, body.GroupID)
	h.memberCache.Invalidate(body.GroupID)
	h.SendToUser(body.UserID, wire.ActionDeleteChat, wire.DeleteChatData{ChatID: body.GroupID})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleGroupMembers(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	groupID := queryInt64(r, "groupId")
	members, err := h.stores.Groups.Members(groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	users := make([]database.User, 0, len(members))
	for _, id := range members {
		user, err := h.stores.Users.FindByID(id)
		if err == nil && user != nil {
			users = append(users, *user)
		}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Hub) handleCreateChannel(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		Name     string `json:"name"`
		Bio      string `json:"bio"`
		Link     string `json:"link"`
		IsPublic bool   `json:"isPublic"`
	}
	if !readBody(w, r, &body) {
		return
	}
	channel := &database.Channel{
		ID:       wire.GenerateID(wire.DomainChannel),
		OwnerID:  userID,
		Name:     body.Name,
		Bio:      body.Bio,
		Link:     body.Link,
		IsPublic: body.IsPublic,
	}
	if err := h.stores.Channels.Create(channel); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.stores.Channels.Join(channel.ID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Upsert(&database.ChatMember{UserID: userID, ChatID: channel.ID})
	h.memberCache.Invalidate(channel.ID)
	writeJSON(w, http.StatusOK, map[string]int64{"id": channel.ID})
}

func (h *Hub) handleDeleteChannel(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChannelID int64 `json:"channelId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Channels.Delete(userID, body.ChannelID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.memberCache.Invalidate(body.ChannelID)
	h.names.DelName(body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleChannelJoin(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChannelID int64 `json:"channelId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	channel, err := h.stores.Channels.FindByID(body.ChannelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if channel == nil {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err := h.stores.Channels.Join(body.ChannelID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Upsert(&database.ChatMember{UserID: userID, ChatID: body.ChannelID})
	h.memberCache.Invalidate(body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Hub) handleChannelLeave(w http.ResponseWriter, r *http.Request, userID int64, token string) {
	var body struct {
		ChannelID int64 `json:"channelId"`
	}
	if !readBody(w, r, &body) {
		return
	}
	if err := h.stores.Channels.Leave(body.ChannelID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.stores.Members.Delete(userID, body.ChannelID)
	h.memberCache.Invalidate(body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func readBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return false
	}
	return true
}

func queryInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("write response:", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeHubError 按错误类别映射状态码：无关操作者 400，找不到 404，其余 500
func writeHubError(w http.ResponseWriter, err error) {
	switch err {
	case chat.ErrNotParticipant, chat.ErrEmptyMessage:
		writeError(w, http.StatusBadRequest, err.Error())
	case chat.ErrMessageNotFound, chat.ErrChatNotFound, chat.ErrFolderNotFound, ErrSessionNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
