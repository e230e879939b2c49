package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	socketcomm "github.com/pagestore/pagestore/internal/communication/socket"
	"github.com/pagestore/pagestore/internal/file_server"
	etcdloc "github.com/pagestore/pagestore/internal/locator/etcd"
	"github.com/pagestore/pagestore/internal/log_service"
	locallog "github.com/pagestore/pagestore/internal/log_service/localdisc"
)

func main() {
	var (
		listen   = flag.String("listen", ":9200", "Listen address")
		nodeID   = flag.String("node-id", "", "Node ID (default: random)")
		logDir   = flag.String("log-dir", "./run/logs", "Log directory")
		logLevel = flag.String("log-level", "INFO", "Minimum log level")
		etcd     = flag.String("etcd", "", "Comma-separated etcd endpoints to announce under")
	)
	flag.Parse()

	id := *nodeID
	if id == "" {
		id = uuid.NewString()
	}

	ls := locallog.NewLocalDiscLogService(*logDir, id, log_service.ParseLevel(*logLevel))
	fs := file_server.NewFileServer(ls)

	lis := socketcomm.NewSocketListener(*listen, ls)
	if err := lis.Start(fs.Handle); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

	var announcer *etcdloc.Announcer
	if *etcd != "" {
		node := etcdloc.ServerNode{ID: id, Address: lis.Address()}
		announcer = etcdloc.NewAnnouncer(strings.Split(*etcd, ","), node, ls)
		if err := announcer.Start(context.Background()); err != nil {
			lis.Stop()
			log.Fatalf("Failed to announce server: %v", err)
		}
	}

	log.Printf("pagestore server %s listening on %s", id, lis.Address())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	if announcer != nil {
		if err := announcer.Stop(context.Background()); err != nil {
			log.Printf("Announcer shutdown error: %v", err)
		}
	}
	if err := lis.Stop(); err != nil {
		log.Fatalf("Server failed to stop: %v", err)
	}
}
