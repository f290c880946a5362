package database

import (
	"fmt"

	"github.com/go-redis/redis"
	_ "github.com/go-sql-driver/mysql"
	"github.com/go-xorm/xorm"
	"xorm.io/core"
)

// InitDb init database
func InitDb(ip string, port int, user, pwd, dbname string) (*xorm.Engine, error) {
	url := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", user, pwd, ip, port, dbname)
	engine, err := xorm.NewEngine("mysql", url)
	if err != nil {
		return nil, err
	}

	tbMapper := core.NewPrefixMapper(core.SnakeMapper{}, "t_")
	engine.SetTableMapper(tbMapper)
	engine.SetColumnMapper(core.SnakeMapper{})

	err = engine.Sync2(
		new(User), new(Session), new(Message), new(ChatMember),
		new(ChatFolder), new(FolderChat),
		new(Group), new(GroupMember),
		new(Channel), new(ChannelMember),
		new(PushLog),
	)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// InitRedis return a redis instance
func InitRedis(ip string, port int, pass string) *redis.Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", ip, port),
		Password: pass,
	})
	return redisdb
}
