package models

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultLedgerFile 默认进度台账文件名
const DefaultLedgerFile = "progress.txt"

// ProgressLedger 进度台账
// 仅追加的换行分隔文件,记录按完成顺序成功的采集对象。
// 台账长度即续采位置; 失败对象不会写入。
type ProgressLedger struct {
	path    string
	entries []Subject
	index   map[Subject]struct{}
	mu      sync.RWMutex
}

// NewProgressLedger 创建台账(不读取文件)
func NewProgressLedger(path string) *ProgressLedger {
	return &ProgressLedger{
		path:    path,
		entries: make([]Subject, 0),
		index:   make(map[Subject]struct{}),
	}
}

// LoadProgressLedger 从文件加载台账,文件不存在时返回空台账
func LoadProgressLedger(path string) (*ProgressLedger, error) {
	l := NewProgressLedger(path)
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path 台账文件路径
func (l *ProgressLedger) Path() string {
	return l.path
}

// Load 重新读取台账文件
// 空行忽略; 重复条目只保留第一次出现
func (l *ProgressLedger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]Subject, 0)
	l.index = make(map[Subject]struct{})

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("打开进度台账失败: %w", err)
	}
	defer file.Close()

	duplicates := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, dup := l.index[line]; dup {
			duplicates++
			log.Warn().Str("subject", line).Str("path", l.path).Msg("⚠️  进度台账中有重复条目,已忽略")
			continue
		}
		l.index[line] = struct{}{}
		l.entries = append(l.entries, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取进度台账失败: %w", err)
	}
	if duplicates > 0 {
		log.Warn().Int("duplicates", duplicates).Int("entries", len(l.entries)).Msg("进度台账重复条目已合并")
	}
	return nil
}

// Append 追加一条成功记录,返回前已同步到磁盘
// 已存在的对象不会重复写入
func (l *ProgressLedger) Append(s Subject) error {
	if err := ValidateSubject(s); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.index[s]; exists {
		return nil
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建台账目录失败: %w", err)
		}
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("打开进度台账失败: %w", err)
	}

	if _, err := file.WriteString(s + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("写入进度台账失败: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("同步进度台账失败: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("关闭进度台账失败: %w", err)
	}

	l.index[s] = struct{}{}
	l.entries = append(l.entries, s)
	return nil
}

// Len 台账长度
func (l *ProgressLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Contains 对象是否已成功
func (l *ProgressLedger) Contains(s Subject) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[s]
	return ok
}

// Entries 台账条目副本(完成顺序)
func (l *ProgressLedger) Entries() []Subject {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Subject, len(l.entries))
	copy(out, l.entries)
	return out
}

// CoveredBy 台账中的每个对象是否都属于给定列表
// 不属于时说明台账来自另一份列表,按位置续采会跳过未处理的对象
func (l *ProgressLedger) CoveredBy(subjects []Subject) bool {
	members := make(map[Subject]struct{}, len(subjects))
	for _, s := range subjects {
		members[s] = struct{}{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if _, ok := members[e]; !ok {
			return false
		}
	}
	return true
}

// ResumeIndex 续采起始下标(不超过列表长度)
func (l *ProgressLedger) ResumeIndex(total int) int {
	n := l.Len()
	if n > total {
		return total
	}
	return n
}
