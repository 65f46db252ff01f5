// Package memory implements the append-only daily markdown log the system
// prompt draws its "recent memory" excerpt from (§4.8): one file per day,
// each line tagged with the (platform, user) it came from so a later
// session can filter to its own history.
package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// Logger appends Message summaries to dir/<date>.md and reads them back
// bounded by a line count and a per-line character cap.
type Logger struct {
	dir             string
	maxCharsPerLine int
	mu              sync.Mutex
}

// NewLogger opens a Logger rooted at dir; maxCharsPerLine truncates an
// over-long line before it is written (0 disables truncation).
func NewLogger(dir string, maxCharsPerLine int) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "memory"
	}
	return &Logger{dir: dir, maxCharsPerLine: maxCharsPerLine}
}

// Append writes one line for msg to today's log file.
func (l *Logger) Append(platform, userID string, msg models.Message) error {
	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("memory: create dir: %w", err)
	}

	line := l.formatLine(platform, userID, ts, msg)
	path := filepath.Join(l.dir, ts.Format("2006-01-02")+".md")

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("memory: open %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func (l *Logger) formatLine(platform, userID string, ts time.Time, msg models.Message) string {
	content := strings.TrimSpace(strings.ReplaceAll(msg.Content, "\n", " "))
	if l.maxCharsPerLine > 0 && len(content) > l.maxCharsPerLine {
		content = content[:l.maxCharsPerLine] + "..."
	}
	return fmt.Sprintf("%s (%s/%s) [%s]: %s\n", ts.Format(time.RFC3339), platform, userID, msg.Role, content)
}

// ReadRecentAt scans back the given number of days (including the day of
// now), keeping lines for (platform, userID) and returning at most
// maxLines, most recent last.
func (l *Logger) ReadRecentAt(now time.Time, platform, userID string, days, maxLines int) ([]string, error) {
	if days <= 0 {
		return nil, nil
	}
	if maxLines <= 0 {
		maxLines = 20
	}
	needle := fmt.Sprintf("(%s/%s)", platform, userID)

	var lines []string
	for offset := days - 1; offset >= 0; offset-- {
		date := now.AddDate(0, 0, -offset).Format("2006-01-02")
		path := filepath.Join(l.dir, date+".md")
		collected, err := l.scan(path, needle)
		if err != nil {
			return nil, err
		}
		lines = append(lines, collected...)
	}

	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}

func (l *Logger) scan(path, needle string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, needle) {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
