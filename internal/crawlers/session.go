package crawlers

import (
	"errors"
	"fmt"
)

// ElementHandle 会话内元素的不透明句柄
// 只能传回产生它的会话使用
type ElementHandle interface{}

// Session 页面渲染会话
// 采集器只依赖这组能力,浏览器实现和离线快照实现可互换
type Session interface {
	// Navigate 加载页面
	Navigate(url string) error

	// ExecuteScript 执行脚本,script为函数体,return的值作为结果返回
	ExecuteScript(script string) (interface{}, error)

	// QueryElements 按CSS选择器查询元素
	QueryElements(selector string) ([]ElementHandle, error)

	// GetAttribute 读取元素属性,属性不存在时返回nil
	GetAttribute(el ElementHandle, name string) (*string, error)

	// Close 释放会话资源,可重复调用
	Close() error
}

// SessionFactory 创建新会话
type SessionFactory func() (Session, error)

// ErrForeignElement 元素句柄不属于当前会话
var ErrForeignElement = errors.New("元素句柄不属于当前会话")

// foreignElement 构造句柄类型错误
func foreignElement(el ElementHandle) error {
	return fmt.Errorf("%w: %T", ErrForeignElement, el)
}
