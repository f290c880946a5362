package main

import (
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/chatd/config"
	"github.com/chatd/database"
	"github.com/chatd/hub"

	_ "github.com/go-sql-driver/mysql"
)

func handleInterrupt(hub *hub.Hub, sc chan os.Signal) {
	select {
	case <-sc:
		hub.Close()
	}
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	// read config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Panicln(err)
	}

	engine, err := database.InitDb(cfg.Mysql.IP, cfg.Mysql.Port, cfg.Mysql.User, cfg.Mysql.Password, cfg.Mysql.DbName)
	if err != nil {
		log.Panicln(err)
	}
	stores := database.NewMysqlStores(engine)

	// 名称缓存优先走 redis，没开 redis 就退回进程内缓存
	var names database.NameCache
	if cfg.Redis.Enabled {
		client := database.InitRedis(cfg.Redis.IP, cfg.Redis.Port, cfg.Redis.Password)
		if _, err := client.Ping().Result(); err != nil {
			log.Panicln(err)
		}
		names = database.NewRedisNameCache(client)
	} else {
		names = database.NewMemNameCache()
	}

	var sender hub.PushSender = hub.NopPushSender{}
	if cfg.Push.Endpoint != "" {
		sender = hub.NewHTTPPushSender(cfg.Push.Endpoint, cfg.Push.Key)
	}

	server, err := hub.NewHub(cfg, stores, names, sender)
	if err != nil {
		log.Panicln(err)
	}

	// listen sys.exit
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt)

	go handleInterrupt(server, sc)

	server.Run()
}
