package capture

import (
	"net/http"
	"sync"
)

var installMu sync.Mutex

// Install 将拦截器设为进程级 http.DefaultTransport，返回的函数恢复原值
func Install(i *Interceptor) (uninstall func()) {
	installMu.Lock()
	prev := http.DefaultTransport
	http.DefaultTransport = i
	installMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			installMu.Lock()
			defer installMu.Unlock()
			if http.DefaultTransport == http.RoundTripper(i) {
				http.DefaultTransport = prev
			}
		})
	}
}
