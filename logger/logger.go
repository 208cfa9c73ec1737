package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	AppLogger   *log.Logger
	ProxyLogger *log.Logger
	ErrorLogger *log.Logger

	mu           sync.Mutex
	logLevel     string
	appLogFile   *os.File
	proxyLogFile *os.File
	initialized  bool
)

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// InitGlobalLoggers opens the app and proxy log files and sets the level.
// Files that cannot be opened are replaced by io.Discard; errors still reach stderr.
func InitGlobalLoggers(appLogPath, proxyLogPath, level string) error {
	mu.Lock()
	defer mu.Unlock()

	level = strings.ToUpper(level)
	if level == "" {
		level = "INFO"
	}
	if _, ok := levelRank[level]; !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if initialized && appLogFile != nil && proxyLogFile != nil && level == logLevel &&
		appLogFile.Name() == appLogPath && proxyLogFile.Name() == proxyLogPath {
		return nil
	}
	closeFilesLocked()
	logLevel = level

	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	var appWriter io.Writer
	appWriter, appLogFile = openLogFile(appLogPath, "app")
	AppLogger = log.New(appWriter, "APP: ", log.Ldate|log.Ltime|log.Lshortfile)

	var proxyWriter io.Writer
	proxyWriter, proxyLogFile = openLogFile(proxyLogPath, "proxy")
	ProxyLogger = log.New(proxyWriter, "PROXY: ", log.Ldate|log.Ltime|log.Lshortfile)

	if !initialized {
		AppLogger.Printf("App logger initialized. Log level: %s. Output file: %s", logLevel, appLogPath)
		ProxyLogger.Printf("Proxy logger initialized. Log level: %s. Output file: %s", logLevel, proxyLogPath)
	}
	initialized = true
	return nil
}

// InitWriters points every logger at w. Used by tests and by one-shot CLI commands.
func InitWriters(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	logLevel = strings.ToUpper(level)
	if _, ok := levelRank[logLevel]; !ok {
		logLevel = "INFO"
	}
	ErrorLogger = log.New(w, "ERROR: ", log.Lmsgprefix)
	AppLogger = log.New(w, "APP: ", log.Lmsgprefix)
	ProxyLogger = log.New(w, "PROXY: ", log.Lmsgprefix)
	initialized = true
}

func openLogFile(path, name string) (io.Writer, *os.File) {
	if path == "" {
		return io.Discard, nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		ErrorLogger.Printf("Failed to create %s log directory %s: %v. %s logs (Info/Debug) will be discarded.", name, dir, err, name)
		return io.Discard, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		ErrorLogger.Printf("Failed to open %s log file %s: %v. %s logs (Info/Debug) will be discarded.", name, path, err, name)
		return io.Discard, nil
	}
	return f, f
}

func enabled(level string) bool {
	current, ok := levelRank[logLevel]
	if !ok {
		current = levelRank["INFO"]
	}
	return levelRank[level] >= current
}

func Info(format string, v ...interface{}) {
	if AppLogger != nil && enabled("INFO") {
		AppLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if AppLogger != nil && enabled("DEBUG") {
		AppLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	if AppLogger != nil && enabled("WARN") {
		AppLogger.Output(2, "WARN: "+fmt.Sprintf(format, v...))
	}
}

func Error(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if ErrorLogger != nil {
		ErrorLogger.Output(2, message)
	}
	if AppLogger != nil && appLogFile != nil {
		AppLogger.Output(2, message)
	}
}

func Fatal(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if ErrorLogger != nil {
		ErrorLogger.Fatal(message)
	} else {
		log.Fatal(message)
	}
}

func ProxyInfo(format string, v ...interface{}) {
	if ProxyLogger != nil && enabled("INFO") {
		ProxyLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func ProxyDebug(format string, v ...interface{}) {
	if ProxyLogger != nil && enabled("DEBUG") {
		ProxyLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func ProxyError(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if ErrorLogger != nil { // All errors go to stderr via ErrorLogger
		ErrorLogger.Output(2, message)
	}
	if ProxyLogger != nil && proxyLogFile != nil {
		ProxyLogger.Output(2, message)
	}
}

// Level returns the active level name.
func Level() string {
	return logLevel
}

func CloseLogFiles() {
	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	initialized = false // Allow re-initialization if needed (e.g. tests)
}

func closeFilesLocked() {
	if appLogFile != nil {
		AppLogger.Println("Closing app log file.")
		appLogFile.Close()
		appLogFile = nil // Prevent double close
	}
	if proxyLogFile != nil {
		ProxyLogger.Println("Closing proxy log file.")
		proxyLogFile.Close()
		proxyLogFile = nil
	}
}
