package localdisc

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pagestore/pagestore/internal/log_service"
)

// LocalDiscLogService appends formatted log lines to one file per node under
// a shared log directory.
type LocalDiscLogService struct {
	logDir   string
	nodeID   string
	mu       sync.Mutex
	logger   *log.Logger
	minLevel log_service.Level
}

func NewLocalDiscLogService(logDir string, nodeID string, minLevel log_service.Level) *LocalDiscLogService {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatalf("failed to create log directory: %v", err)
	}

	filePath := filepath.Join(logDir, fmt.Sprintf("%s.log", nodeID))
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}

	return &LocalDiscLogService{
		logDir:   logDir,
		nodeID:   nodeID,
		logger:   log.New(file, "", 0),
		minLevel: minLevel,
	}
}

func (ls *LocalDiscLogService) SetMinLevel(level log_service.Level) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.minLevel = level
}

func formatLog(level log_service.Level, event log_service.LogEvent) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var meta strings.Builder
	for k, v := range event.Metadata {
		fmt.Fprintf(&meta, "%s=%v ", k, v)
	}

	return fmt.Sprintf("%s [%s] %s: %s %s", ts.Format(time.RFC3339), event.NodeID, level, event.Message, meta.String())
}

func (ls *LocalDiscLogService) log(level log_service.Level, event log_service.LogEvent) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if level < ls.minLevel {
		return
	}

	event.NodeID = ls.nodeID
	ls.logger.Print(formatLog(level, event))
}

func (ls *LocalDiscLogService) Debug(event log_service.LogEvent) {
	ls.log(log_service.DebugLevel, event)
}

func (ls *LocalDiscLogService) Info(event log_service.LogEvent) {
	ls.log(log_service.InfoLevel, event)
}

func (ls *LocalDiscLogService) Warn(event log_service.LogEvent) {
	ls.log(log_service.WarnLevel, event)
}

func (ls *LocalDiscLogService) Error(event log_service.LogEvent) {
	ls.log(log_service.ErrorLevel, event)
}

var _ log_service.LogService = (*LocalDiscLogService)(nil)
