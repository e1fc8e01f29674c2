package request

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "xrplfeed/1.0"

// New 构建共享的 REST 客户端
func New(timeout time.Duration, retries int) *resty.Client {
	return resty.New().SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment, // 通用适配环境变量
	}).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

var Request = New(15*time.Second, 2)
