package main

import (
	"time"

	"go.uber.org/zap"

	httpapi "shogi-server/internal/api/http"
	"shogi-server/internal/config"
	"shogi-server/internal/logging"
	"shogi-server/internal/room"
	"shogi-server/internal/store"
	wstransport "shogi-server/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel, "")
	defer log.Sync()

	bolt, err := store.OpenBolt(cfg.StorePath)
	if err != nil {
		log.Fatalw("store_open_failed", "err", err)
	}
	defer bolt.Close()

	rm := room.NewManager(bolt, nil, cfg.InitialSeconds, cfg.ByoyomiSeconds)
	hub := wstransport.NewHub(rm, log, cfg.CORSOpen)
	rm.SetBroadcaster(hub)

	reloadRooms(rm, bolt, log)
	go gcLoop(rm, cfg.GCInterval, cfg.InactivityTimeout, log)

	r := httpapi.NewRouter(hub)
	log.Infow("listening", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalw("server_exited", "err", err)
	}
}

func reloadRooms(rm *room.Manager, bolt *store.BoltStore, log *zap.SugaredLogger) {
	rooms, err := bolt.LoadAll()
	if err != nil {
		log.Errorw("room_reload_failed", "err", err)
		return
	}
	for _, r := range rooms {
		rm.Adopt(r)
	}
	log.Infow("rooms_reloaded", "count", len(rooms))
}

func gcLoop(rm *room.Manager, interval, maxAge time.Duration, log *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		removed := rm.GCInactiveRooms(maxAge)
		if removed > 0 {
			log.Infow("rooms_gc_swept", "removed", removed)
		}
	}
}
