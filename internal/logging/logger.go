// Package logging provides categorized logging for uiforge.
// Every line is published to an in-process broadcast hub that live consumers
// (the SSE log stream) subscribe to. When a log directory is configured, lines
// are also written to one file per category.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategoryAPI      Category = "api"      // Completion service calls
	CategoryPipeline Category = "pipeline" // Stage sequencing and retries
	CategoryOptimize Category = "optimize" // Critique-then-revise step
	CategoryStore    Category = "store"    // Artifact and trace persistence
	CategoryServer   Category = "server"   // HTTP front end
	CategoryMCP      Category = "mcp"      // MCP tool surface
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options configures the logging system.
type Options struct {
	// Dir receives one file per category. Empty disables file output.
	Dir string
	// Level is debug, info, warn or error.
	Level string
	// JSONFormat writes files as JSON lines instead of text.
	JSONFormat bool
	// Categories disables individual categories when set to false.
	Categories map[string]bool
}

// Logger writes lines for one category.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	opts     Options
	logLevel = LevelInfo
	configMu sync.RWMutex
)

// Initialize applies options. It may be called again to reconfigure; open
// category files are closed first.
func Initialize(o Options) error {
	CloseAll()

	configMu.Lock()
	opts = o
	logLevel = ParseLevel(o.Level)
	configMu.Unlock()

	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	Boot("logging initialized: level=%s dir=%q json=%v", levelName(currentLevel()), o.Dir, o.JSONFormat)
	return nil
}

// ParseLevel maps a level name to its numeric value. Unknown names map to info.
func ParseLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level string) {
	configMu.Lock()
	logLevel = ParseLevel(level)
	opts.Level = level
	configMu.Unlock()
}

func currentLevel() int {
	configMu.RLock()
	defer configMu.RUnlock()
	return logLevel
}

func levelName(level int) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}

	configMu.RLock()
	dir := opts.Dir
	configMu.RUnlock()

	if dir != "" {
		date := time.Now().Format("2006-01-02")
		logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		} else {
			l.file = file
			l.logger = log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds)
		}
	}

	loggers[category] = l
	return l
}

func (l *Logger) emit(level int, msg string) {
	if level < currentLevel() || !IsCategoryEnabled(l.category) {
		return
	}

	entry := Entry{
		Time:     time.Now(),
		Category: string(l.category),
		Level:    levelName(level),
		Message:  msg,
	}
	defaultHub.Publish(entry)

	if l.logger == nil {
		return
	}
	configMu.RLock()
	jsonFormat := opts.JSONFormat
	configMu.RUnlock()

	if jsonFormat {
		data, err := json.Marshal(entry)
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", strings.ToUpper(entry.Level), msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootError logs an error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// APIError logs an error to the api category
func APIError(format string, args ...interface{}) {
	Get(CategoryAPI).Error(format, args...)
}

// Pipeline logs to the pipeline category
func Pipeline(format string, args ...interface{}) {
	Get(CategoryPipeline).Info(format, args...)
}

// PipelineDebug logs debug to the pipeline category
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}

// PipelineWarn logs a warning to the pipeline category
func PipelineWarn(format string, args ...interface{}) {
	Get(CategoryPipeline).Warn(format, args...)
}

// PipelineError logs an error to the pipeline category
func PipelineError(format string, args ...interface{}) {
	Get(CategoryPipeline).Error(format, args...)
}

// Optimize logs to the optimize category
func Optimize(format string, args ...interface{}) {
	Get(CategoryOptimize).Info(format, args...)
}

// OptimizeWarn logs a warning to the optimize category
func OptimizeWarn(format string, args ...interface{}) {
	Get(CategoryOptimize).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreError logs an error to the store category
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}

// Server logs to the server category
func Server(format string, args ...interface{}) {
	Get(CategoryServer).Info(format, args...)
}

// ServerError logs an error to the server category
func ServerError(format string, args ...interface{}) {
	Get(CategoryServer).Error(format, args...)
}

// MCP logs to the mcp category
func MCP(format string, args ...interface{}) {
	Get(CategoryMCP).Info(format, args...)
}

// =============================================================================
// RUN-SCOPED LOGGING
// =============================================================================

// RunLogger prefixes every line with a pipeline run ID
type RunLogger struct {
	logger *Logger
	runID  string
}

// WithRunID creates a run-scoped logger
func WithRunID(category Category, runID string) *RunLogger {
	return &RunLogger{logger: Get(category), runID: runID}
}

func (r *RunLogger) formatMsg(format string, args ...interface{}) string {
	return fmt.Sprintf("[run:%s] %s", r.runID, fmt.Sprintf(format, args...))
}

func (r *RunLogger) Debug(format string, args ...interface{}) {
	r.logger.emit(LevelDebug, r.formatMsg(format, args...))
}

func (r *RunLogger) Info(format string, args ...interface{}) {
	r.logger.emit(LevelInfo, r.formatMsg(format, args...))
}

func (r *RunLogger) Warn(format string, args ...interface{}) {
	r.logger.emit(LevelWarn, r.formatMsg(format, args...))
}

func (r *RunLogger) Error(format string, args ...interface{}) {
	r.logger.emit(LevelError, r.formatMsg(format, args...))
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
