package database

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
)

// MemberCache 进程内的频道/群成员缓存。发消息扇出要按成员集合展开，
// 不能每条消息都打一次成员表，所以首次用到时从存储懒加载，
// 入群/退群时整组失效。
type MemberCache struct {
	mu   sync.RWMutex
	sets map[int64]mapset.Set
}

// NewMemberCache NewMemberCache
func NewMemberCache() *MemberCache {
	return &MemberCache{sets: make(map[int64]mapset.Set)}
}

// Members 返回成员快照；没有缓存过返回 (nil, false)
func (c *MemberCache) Members(chatID int64) ([]int64, bool) {
	c.mu.RLock()
	set, ok := c.sets[chatID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	raw := set.ToSlice()
	members := make([]int64, 0, len(raw))
	for _, v := range raw {
		members = append(members, v.(int64))
	}
	return members, true
}

// Put 用存储里的完整成员列表填充缓存
func (c *MemberCache) Put(chatID int64, members []int64) {
	set := mapset.NewThreadUnsafeSet()
	for _, m := range members {
		set.Add(m)
	}
	c.mu.Lock()
	c.sets[chatID] = set
	c.mu.Unlock()
}

// Invalidate 成员变动后整组失效，下次扇出时重新加载
func (c *MemberCache) Invalidate(chatID int64) {
	c.mu.Lock()
	delete(c.sets, chatID)
	c.mu.Unlock()
}
