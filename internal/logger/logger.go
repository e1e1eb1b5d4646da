package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Types int

const (
	Info Types = iota
	Error
	Warn
	Fatal
)

type Message struct {
	Timestamp time.Time
	Tag       string
	Message   string
	LogTypes  Types
}

type manager struct {
	sink    io.Writer
	dev     bool
	logFile *os.File
	logChan chan Message
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Logger struct {
	tag string
	m   *manager
}

var (
	logManager *manager
	once       sync.Once
)

// InitLogger sets up the shared log manager. In dev mode every message is
// echoed to sink; with a logPath messages are also appended to a timestamped
// file in that directory.
func InitLogger(dev bool, logPath string, sink io.Writer) error {
	var initErr error
	once.Do(func() {
		m := &manager{
			sink:    sink,
			dev:     dev,
			logChan: make(chan Message, 100),
			done:    make(chan struct{}),
		}
		if logPath != "" {
			timestamp := time.Now().Format("20060102_150405")
			fileName := fmt.Sprintf("chatprobe_log_%s.log", timestamp)
			filePath := filepath.Join(logPath, fileName)

			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				initErr = fmt.Errorf("failed to open log file: %w", err)
				return
			}
			m.logFile = file
		}

		go m.processLogs()
		logManager = m
	})
	return initErr
}

// NewLogger returns a logger tagged with the calling component. Before
// InitLogger it discards everything.
func NewLogger(tag string) *Logger {
	return &Logger{tag: tag, m: logManager}
}

func (m *manager) processLogs() {
	defer close(m.done)
	for msg := range m.logChan {
		if m.logFile != nil {
			m.logFile.WriteString(format(msg))
		}
	}
}

func format(msg Message) string {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s [%s] %s: %s\n", timestamp, msg.Tag, msg.LogTypes.toString(), msg.Message)
}

func (l *Logger) log(logTypes Types, v ...interface{}) {
	m := l.m
	if m == nil {
		m = logManager
	}
	if m == nil {
		return
	}

	msg := Message{
		Timestamp: time.Now(),
		Tag:       l.tag,
		Message:   fmt.Sprint(v...),
		LogTypes:  logTypes,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	if m.dev && m.sink != nil {
		fmt.Fprintf(m.sink, "DEBUG (%s) %s: %s\n", l.tag, logTypes.toString(), msg.Message)
	}
	if m.logFile != nil {
		m.logChan <- msg
	}
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, v...)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, v...)
	Close()
	os.Exit(1)
}

// Close flushes pending file writes. Messages logged afterwards are dropped.
func Close() {
	m := logManager
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.logChan)
	m.mu.Unlock()

	<-m.done
	if m.logFile != nil {
		m.logFile.Close()
	}
}

func (t Types) toString() string {
	switch t {
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
