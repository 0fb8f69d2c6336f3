package metrics

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"
)

// Logger sinks one MetricsInfo record per served request.
type Logger interface {
	Log(info *MetricsInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	out, err := info.ToJSON()
	if err != nil {
		log.Printf("StdoutLogger: error: %v", err)
		return
	}
	log.Print(out)
}

const metricsQueueSize = 2000
const logShards = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger writes request metrics to sharded log files under LogDir.
// Each shard rotates once it exceeds MaxLogFileSize, and the oldest
// rotations beyond MaxLogFiles are pruned. Log records queue through a
// buffered channel so slow disks never block request handlers.
type FileLogger struct {
	queue          chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		queue:          make(chan *MetricsInfo, metricsQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	for i := 0; i < logShards; i++ {
		go logger.writeLoop(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	l.queue <- info
}

func (l *FileLogger) shardPath(idx int) string {
	return path.Join(l.LogDir, fmt.Sprintf("metrics%d.log", idx))
}

func (l *FileLogger) openShard(idx int) (*os.File, int64, error) {
	f, err := os.OpenFile(l.shardPath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func (l *FileLogger) writeLoop(idx int) {
	var f *os.File
	var size int64

	for info := range l.queue {
		rec, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger%d: info.ToJSON() error: %v", idx, err)
			continue
		}

		if f != nil && size >= l.MaxLogFileSize {
			f.Close()
			f = nil
			if err := l.rotateShard(idx); err != nil {
				log.Printf("FileLogger%d: log rotation error: %v", idx, err)
			}
		}
		if f == nil {
			f, size, err = l.openShard(idx)
			if err != nil {
				log.Printf("FileLogger%d: log open error: %v", idx, err)
				continue
			}
		}

		n, err := f.WriteString(rec)
		if err != nil {
			log.Printf("FileLogger%d: write error: %v", idx, err)
			continue
		}
		size += int64(n)
		f.Sync()
	}
}

// rotateShard renames the active shard file with a nanosecond
// timestamp suffix and prunes the oldest rotations past MaxLogFiles.
func (l *FileLogger) rotateShard(idx int) error {
	rotated := fmt.Sprintf("%s.%d", l.shardPath(idx), time.Now().UnixNano())
	if err := os.Rename(l.shardPath(idx), rotated); err != nil {
		return err
	}
	if l.Verbose {
		log.Printf("FileLogger%d: log file rotated: %v", idx, rotated)
	}

	matches, err := filepath.Glob(l.shardPath(idx) + ".*")
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for len(matches) > l.MaxLogFiles {
		if l.Verbose {
			log.Printf("FileLogger%d: maximum number of log files reached, removing %s", idx, matches[0])
		}
		if err := os.Remove(matches[0]); err != nil {
			return err
		}
		matches = matches[1:]
	}
	return nil
}
