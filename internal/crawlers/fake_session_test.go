package crawlers

import (
	"fmt"
	"net/url"
	"strings"
)

// fakeLink 页面上的一个下载链接,nil表示属性不存在
type fakeLink struct {
	download *string
	href     *string
}

func strPtr(s string) *string { return &s }

// csvLink 构造data:text/csv链接
func csvLink(name, content string) fakeLink {
	return fakeLink{
		download: strPtr(name),
		href:     strPtr("data:text/csv;charset=utf-8," + url.PathEscape(content)),
	}
}

// fakeSession 内存中的会话实现
type fakeSession struct {
	links []fakeLink

	navErr   error
	queryErr error
	attrErr  error

	// scriptErr 在第scriptErrAt次脚本调用时返回(从1开始,0表示不注入)
	scriptErr   error
	scriptErrAt int

	// readyAfter 就绪检测在第N次调用后返回true
	readyAfter int

	navigated []string
	scripts   []string
	readyHits int
	closed    bool
}

func (f *fakeSession) Navigate(u string) error {
	f.navigated = append(f.navigated, u)
	return f.navErr
}

func (f *fakeSession) ExecuteScript(script string) (interface{}, error) {
	f.scripts = append(f.scripts, script)
	if f.scriptErr != nil && len(f.scripts) == f.scriptErrAt {
		return nil, f.scriptErr
	}
	if script == readyScript {
		f.readyHits++
		return f.readyHits > f.readyAfter, nil
	}
	return nil, nil
}

func (f *fakeSession) QueryElements(selector string) ([]ElementHandle, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if selector != CSVLinkSelector {
		return nil, fmt.Errorf("unexpected selector %s", selector)
	}
	handles := make([]ElementHandle, 0, len(f.links))
	for i := range f.links {
		handles = append(handles, i)
	}
	return handles, nil
}

func (f *fakeSession) GetAttribute(el ElementHandle, name string) (*string, error) {
	if f.attrErr != nil {
		return nil, f.attrErr
	}
	i, ok := el.(int)
	if !ok {
		return nil, foreignElement(el)
	}
	switch name {
	case "download":
		return f.links[i].download, nil
	case "href":
		return f.links[i].href, nil
	}
	return nil, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// scrollScripts 记录中的滚动脚本
func (f *fakeSession) scrollScripts() []string {
	var out []string
	for _, s := range f.scripts {
		if strings.HasPrefix(s, "window.scrollTo") {
			out = append(out, s)
		}
	}
	return out
}
