package main

import (
	"context"
	"flag"
	"log"
	"strings"

	socketcomm "github.com/pagestore/pagestore/internal/communication/socket"
	"github.com/pagestore/pagestore/internal/file_client"
	"github.com/pagestore/pagestore/internal/locator"
	etcdloc "github.com/pagestore/pagestore/internal/locator/etcd"
	"github.com/pagestore/pagestore/internal/log_service"
	locallog "github.com/pagestore/pagestore/internal/log_service/localdisc"
	"github.com/pagestore/pagestore/internal/protocol"
)

func main() {
	var (
		server = flag.String("server", "localhost:9200", "File server address")
		etcd   = flag.String("etcd", "", "Comma-separated etcd endpoints (overrides -server)")
		logDir = flag.String("log-dir", "./run/client/logs", "Log directory")
	)
	flag.Parse()

	ls := locallog.NewLocalDiscLogService(*logDir, "pagestore-client", log_service.InfoLevel)

	var loc locator.Locator
	if *etcd != "" {
		loc = etcdloc.NewEtcdLocator(strings.Split(*etcd, ","), ls)
	} else {
		loc = locator.NewStaticLocator(*server)
	}

	ex := socketcomm.NewSocketExchanger(loc, ls)
	defer ex.Close()
	fc := file_client.NewClient(ex)

	ctx := context.Background()
	filePath := "/a.txt"
	fileData := "Hello from the pagestore client!"

	log.Println("--- Starting Test Operations ---")

	log.Println("1. Opening file:", filePath)
	fd, err := fc.Open(ctx, filePath, protocol.ReadWrite|protocol.Create|protocol.Trunc)
	if err != nil {
		log.Fatalf("Open failed: %v", err)
	}
	log.Printf("   Opened with descriptor %d", fd)

	log.Printf("2. Writing data: %q", fileData)
	written := 0
	for written < len(fileData) {
		n, err := fc.WriteFd(ctx, fd, []byte(fileData)[written:])
		if err != nil {
			log.Fatalf("Write failed: %v", err)
		}
		written += n
	}
	log.Printf("   Wrote %d bytes", written)

	log.Println("3. Stat after write")
	info, err := fc.StatFd(ctx, fd)
	if err != nil {
		log.Fatalf("Stat failed: %v", err)
	}
	log.Printf("   name=%s size=%d dir=%v", info.Name, info.Size, info.IsDir)

	log.Println("4. Reading the file back")
	if err := fc.Seek(fd, 0); err != nil {
		log.Fatalf("Seek failed: %v", err)
	}
	buf := make([]byte, len(fileData)+16)
	n, err := fc.ReadFd(ctx, fd, buf)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}
	log.Printf("   Read %d bytes: %q", n, buf[:n])

	log.Println("5. Truncating to 5 bytes")
	if err := fc.TruncateFd(ctx, fd, 5); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}
	info, err = fc.StatFd(ctx, fd)
	if err != nil {
		log.Fatalf("Stat failed: %v", err)
	}
	log.Printf("   size after truncate: %d", info.Size)

	log.Println("6. Closing and syncing")
	if err := fc.Close(ctx, fd); err != nil {
		log.Fatalf("Close failed: %v", err)
	}
	if err := fc.Sync(ctx); err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	log.Println("--- Test Operations Complete ---")
}
