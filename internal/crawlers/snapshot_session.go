package crawlers

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"golang.org/x/net/html"
)

// errSnapshotClosed 会话关闭后继续使用
var errSnapshotClosed = errors.New("快照会话已关闭")

// SnapshotSession 基于已保存HTML页面的离线会话
// 页面在保存时已完成渲染,脚本一律视为执行成功并返回true
type SnapshotSession struct {
	doc *goquery.Document

	mu      sync.Mutex
	visited []string
	closed  bool
}

// NewSnapshotSession 从HTML文本创建会话
func NewSnapshotSession(htmlContent string) (*SnapshotSession, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return &SnapshotSession{doc: goquery.NewDocumentFromNode(root)}, nil
}

// LoadSnapshotSession 从HTML文件创建会话
func LoadSnapshotSession(path string) (*SnapshotSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取HTML文件失败: %w", err)
	}
	return NewSnapshotSession(string(data))
}

// Navigate 记录访问地址,文档内容不变
func (s *SnapshotSession) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.SessionInvalidated(errSnapshotClosed)
	}
	s.visited = append(s.visited, url)
	return nil
}

// ExecuteScript 不执行脚本,返回true
func (s *SnapshotSession) ExecuteScript(script string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, models.SessionInvalidated(errSnapshotClosed)
	}
	return true, nil
}

// QueryElements 按CSS选择器查询
func (s *SnapshotSession) QueryElements(selector string) ([]ElementHandle, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, models.SessionInvalidated(errSnapshotClosed)
	}

	var handles []ElementHandle
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		handles = append(handles, sel)
	})
	return handles, nil
}

// GetAttribute 读取属性
func (s *SnapshotSession) GetAttribute(h ElementHandle, name string) (*string, error) {
	sel, ok := h.(*goquery.Selection)
	if !ok {
		return nil, foreignElement(h)
	}
	val, exists := sel.Attr(name)
	if !exists {
		return nil, nil
	}
	return &val, nil
}

// Close 关闭会话
func (s *SnapshotSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Visited 已访问的地址
func (s *SnapshotSession) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.visited))
	copy(out, s.visited)
	return out
}
