package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes a per-session trading log file for one underlying.
type Logger struct {
	underlying string
	logFile    *os.File
	logger     *log.Logger
	mu         sync.Mutex
	logDir     string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a new file logger for the specified underlying
func NewLogger(underlying string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_scalp_%s.log", underlying, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		underlying: underlying,
		logFile:    file,
		logger:     log.New(file, "", 0),
		logDir:     logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 SCALPING SESSION STARTED
================================================================================
Underlying: %s
Started: %s
Log File: %s_scalp_%s.log
================================================================================
`, l.underlying, time.Now().Format("2006-01-02 15:04:05"),
		l.underlying, time.Now().Format("2006-01-02"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logEntry := fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)

	l.logger.Println(logEntry)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogTick logs a compact per-tick market status line for the watched contract.
func (l *Logger) LogTick(symbol string, premium, delta, gamma, iv float64, bias string) {
	l.Status("%s | premium ₹%.2f | Δ %.3f | Γ %.4f | IV %.1f%% | bias %s",
		symbol, premium, delta, gamma, iv, bias)
}

// LogTradeOpen logs the full detail of a fresh entry.
func (l *Logger) LogTradeOpen(symbol string, orderID string, quantity int, entryPrice, stopLoss, target float64, tier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== ENTRY EXECUTED ====================
✅ Order ID: %s
📦 Contract: %s x %d
💰 Entry Premium: ₹%.2f
🛑 Stop Loss: ₹%.2f
🎯 Target: ₹%.2f
⚡ Tier: %s
=============================================================`,
		timestamp, orderID, symbol, quantity, entryPrice, stopLoss, target, tier)

	l.logger.Println(tradeLog)
}

// LogTradeClose logs the outcome of a completed trade.
func (l *Logger) LogTradeClose(symbol string, entryPrice, exitPrice, pnl float64, reason string, held time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	outcome := "🟢 PROFIT"
	if pnl < 0 {
		outcome = "🔴 LOSS"
	}

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== EXIT EXECUTED ====================
🚪 Contract: %s
🎯 Entry: ₹%.2f → Exit: ₹%.2f
%s: ₹%.2f
📋 Reason: %s
⏱ Held: %s
============================================================`,
		timestamp, symbol, entryPrice, exitPrice, outcome, pnl, reason, held.Round(time.Second))

	l.logger.Println(tradeLog)
}

// LogRiskHalt logs a trading halt from the risk governor.
func (l *Logger) LogRiskHalt(reason string) {
	l.Warning("🛑 TRADING HALTED: %s", reason)
}

// LogDaySummary logs the end-of-day account of the session.
func (l *Logger) LogDaySummary(trades int, wins int, realizedPnl float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	summary := fmt.Sprintf(`
[%s] [STATUS] ==================== DAY SUMMARY ====================
📊 Trades: %d | Wins: %d
💹 Realized P&L: ₹%.2f
==========================================================`,
		timestamp, trades, wins, realizedPnl)

	l.logger.Println(summary)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 SCALPING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_scalp_%s.log", l.underlying, timestamp)
	return filepath.Join(l.logDir, filename)
}
