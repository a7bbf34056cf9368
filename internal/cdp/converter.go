package cdp

import (
	"encoding/base64"
	"math"
	"time"

	"netinspect/pkg/traffic"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/tidwall/gjson"
)

// toHeader 将 CDP 头部（JSON 对象）转换为中立 Header
func toHeader(h network.Headers) traffic.Header {
	out := make(traffic.Header)
	if len(h) == 0 {
		return out
	}
	gjson.ParseBytes(h).ForEach(func(k, v gjson.Result) bool {
		out.Set(k.String(), v.String())
		return true
	})
	return out
}

// postData 请求体，CDP 对大请求体可能不下发
func postData(req network.Request) []byte {
	if req.PostData == nil || *req.PostData == "" {
		return nil
	}
	return []byte(*req.PostData)
}

// wallTime 浏览器墙上时间（秒）转换为 time.Time
func wallTime(t network.TimeSinceEpoch) time.Time {
	sec, frac := math.Modf(float64(t))
	return time.Unix(int64(sec), int64(frac*1e9))
}

// elapsed 两个单调时间戳（秒）之间的间隔，负值按 0 处理
func elapsed(from, to network.MonotonicTime) time.Duration {
	d := float64(to) - float64(from)
	if d < 0 {
		return 0
	}
	return time.Duration(d * float64(time.Second))
}

// decodeBody Network.getResponseBody 的结果
func decodeBody(reply *network.GetResponseBodyReply, max int) []byte {
	if reply == nil || reply.Body == "" {
		return nil
	}
	var b []byte
	if reply.Base64Encoded {
		d, err := base64.StdEncoding.DecodeString(reply.Body)
		if err != nil {
			return nil
		}
		b = d
	} else {
		b = []byte(reply.Body)
	}
	if max > 0 && len(b) > max {
		b = b[:max]
	}
	return b
}
