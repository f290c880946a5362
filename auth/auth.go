// Package auth 签发并校验设备令牌。令牌自带用户 id 声明，
// 校验时再比对一条活跃的设备会话记录，两步都过才算通过。
package auth

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chatd/database"
)

// TokenCodec 令牌格式：<userID>.<nonce>.<digest>，
// digest = md5(userID + nonce + secret)。nonce 保证同一用户
// 多台设备拿到不同令牌。
type TokenCodec struct {
	secret string
}

// NewTokenCodec NewTokenCodec
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: secret}
}

// Sign 为 userID 签发一个新令牌
func (c *TokenCodec) Sign(userID int64) string {
	id := strconv.FormatInt(userID, 10)
	nonce := strings.Replace(uuid.New().String(), "-", "", -1)
	return id + "." + nonce + "." + c.digest(id, nonce)
}

// Parse 校验完整性并取出用户 id 声明。任何一步失败都返回 ok=false。
func (c *TokenCodec) Parse(token string) (int64, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, false
	}
	if c.digest(parts[0], parts[1]) != parts[2] {
		return 0, false
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func (c *TokenCodec) digest(id, nonce string) string {
	h := md5.New()
	io.WriteString(h, id)
	io.WriteString(h, nonce)
	io.WriteString(h, c.secret)
	return hex.EncodeToString(h.Sum(nil))
}

// Authenticator 统一的请求/握手鉴权入口
type Authenticator struct {
	codec    *TokenCodec
	sessions database.SessionStore
}

// NewAuthenticator NewAuthenticator
func NewAuthenticator(codec *TokenCodec, sessions database.SessionStore) *Authenticator {
	return &Authenticator{codec: codec, sessions: sessions}
}

// Authenticate 解出令牌里的用户 id，再确认 (userID, token) 有活跃会话。
// 失败一律关门：调用方负责拒绝请求或断开连接，这里不改任何状态。
func (a *Authenticator) Authenticate(token string) (int64, bool) {
	userID, ok := a.codec.Parse(token)
	if !ok {
		return 0, false
	}
	session, err := a.sessions.FindActive(userID, token)
	if err != nil || session == nil {
		return 0, false
	}
	return userID, true
}
