package crawlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodSessionConfig 浏览器会话配置
type RodSessionConfig struct {
	Headless     bool
	Stealth      bool          // 通过go-rod/stealth创建页面
	WindowWidth  int
	WindowHeight int
	OpTimeout    time.Duration // 单次浏览器操作超时(0表示不限制)
}

// RodSessionConfigFrom 从采集配置生成会话配置
func RodSessionConfigFrom(cfg models.HarvestConfig) RodSessionConfig {
	return RodSessionConfig{
		Headless:     cfg.Headless,
		Stealth:      cfg.Stealth,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
		OpTimeout:    cfg.NavigateTimeout,
	}
}

// RodSession 基于go-rod的浏览器会话
// 一个会话对应一个独立的Chromium进程和一个标签页
type RodSession struct {
	config   RodSessionConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewRodSessionFactory 返回启动浏览器会话的工厂函数
func NewRodSessionFactory(config RodSessionConfig) SessionFactory {
	return func() (Session, error) {
		return LaunchRodSession(config)
	}
}

// LaunchRodSession 启动浏览器并打开一个标签页
// 任何一步失败都会清理已启动的进程
func LaunchRodSession(config RodSessionConfig) (*RodSession, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RodSession{config: config, ctx: ctx, cancel: cancel}

	if err := s.launch(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// launch 启动浏览器
func (s *RodSession) launch() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("启动浏览器panic: %v", r)
		}
	}()

	l := launcher.New().
		Headless(s.config.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-blink-features", "AutomationControlled")
	if s.config.WindowWidth > 0 && s.config.WindowHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", s.config.WindowWidth, s.config.WindowHeight))
	}
	s.launcher = l

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	s.browser = rod.New().ControlURL(controlURL).Context(s.ctx)
	if err := s.browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	if s.config.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return fmt.Errorf("创建标签页失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s (stealth=%v)", controlURL, s.config.Stealth)
	return nil
}

// Navigate 导航并等待load事件
func (s *RodSession) Navigate(url string) (err error) {
	defer s.recoverInto(&err)

	p, done := s.scoped()
	defer done()

	if err := p.Navigate(url); err != nil {
		return s.classify(fmt.Errorf("导航失败: %w", err))
	}
	if err := p.WaitLoad(); err != nil {
		return s.classify(fmt.Errorf("等待页面加载失败: %w", err))
	}
	return nil
}

// ExecuteScript 将函数体包装为函数表达式后执行
func (s *RodSession) ExecuteScript(script string) (result interface{}, err error) {
	defer s.recoverInto(&err)

	p, done := s.scoped()
	defer done()

	obj, err := p.Eval("() => {\n" + script + "\n}")
	if err != nil {
		return nil, s.classify(fmt.Errorf("执行脚本失败: %w", err))
	}
	return obj.Value.Val(), nil
}

// QueryElements 查询元素
func (s *RodSession) QueryElements(selector string) (handles []ElementHandle, err error) {
	defer s.recoverInto(&err)

	p, done := s.scoped()
	defer done()

	elements, err := p.Elements(selector)
	if err != nil {
		return nil, s.classify(fmt.Errorf("查询元素失败 [%s]: %w", selector, err))
	}

	handles = make([]ElementHandle, 0, len(elements))
	for _, el := range elements {
		handles = append(handles, el)
	}
	return handles, nil
}

// GetAttribute 读取元素属性
func (s *RodSession) GetAttribute(h ElementHandle, name string) (value *string, err error) {
	defer s.recoverInto(&err)

	el, ok := h.(*rod.Element)
	if !ok {
		return nil, foreignElement(h)
	}

	// 元素继承查询时的超时上下文,这里换回会话上下文
	el = el.Context(s.ctx)
	if s.config.OpTimeout > 0 {
		el = el.Timeout(s.config.OpTimeout)
		defer el.CancelTimeout()
	}

	value, err = el.Attribute(name)
	if err != nil {
		return nil, s.classify(fmt.Errorf("读取属性失败 [%s]: %w", name, err))
	}
	return value, nil
}

// Close 关闭浏览器并清理进程
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						utils.Debugf("关闭浏览器panic: %v", r)
					}
				}()
				if err := s.browser.Close(); err != nil {
					s.closeErr = fmt.Errorf("关闭浏览器失败: %w", err)
				}
			}()
		}
		s.cancel()
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		utils.Debugf("浏览器已关闭")
	})
	return s.closeErr
}

// scoped 返回带操作超时的页面
func (s *RodSession) scoped() (*rod.Page, func()) {
	if s.config.OpTimeout <= 0 {
		return s.page, func() {}
	}
	p := s.page.Timeout(s.config.OpTimeout)
	return p, func() { p.CancelTimeout() }
}

// recoverInto rod的Must*路径和已断开的连接会panic,统一视为会话失效
func (s *RodSession) recoverInto(err *error) {
	if r := recover(); r != nil {
		utils.Errorf("浏览器操作panic: %v", r)
		*err = models.SessionInvalidated(fmt.Errorf("浏览器操作panic: %v", r))
	}
}

// classify 将浏览器或连接已不可用的错误标记为会话失效
func (s *RodSession) classify(err error) error {
	if err == nil {
		return nil
	}
	if isSessionGone(err) || s.ctx.Err() != nil {
		return models.SessionInvalidated(err)
	}
	return err
}

// sessionGoneMarkers 连接断开或目标崩溃时的错误文本
var sessionGoneMarkers = []string{
	"use of closed network connection",
	"websocket: close",
	"connection reset by peer",
	"broken pipe",
	"target closed",
	"target crashed",
	"session closed",
	"no target with given id",
}

// isSessionGone 判断错误是否意味着会话不可继续使用
func isSessionGone(err error) bool {
	var pageNotFound *rod.PageNotFoundError
	switch {
	case errors.Is(err, cdp.ErrSessionNotFound),
		errors.Is(err, cdp.ErrNotAttachedToActivePage),
		errors.Is(err, cdp.ErrCtxDestroyed),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.As(err, &pageNotFound):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range sessionGoneMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
