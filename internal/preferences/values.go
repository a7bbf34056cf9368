package preferences

import (
	"encoding/base64"
	"sort"
	"strings"
	"unicode/utf8"

	"netinspect/pkg/model"

	"github.com/tidwall/gjson"
)

// dataKey JSON 中表示二进制值的对象键
const dataKey = "$data"

// fromJSON 将 gjson 值转换为偏好值，null 返回 nil
func fromJSON(r gjson.Result) model.Value {
	switch r.Type {
	case gjson.String:
		return model.StringValue(r.Str)
	case gjson.True, gjson.False:
		return model.BoolValue(r.Bool())
	case gjson.Number:
		if isIntegral(r.Raw) {
			return model.IntValue(r.Int())
		}
		return model.DoubleValue(r.Float())
	case gjson.JSON:
		if r.IsArray() {
			arr := model.ArrayValue{}
			r.ForEach(func(_, v gjson.Result) bool {
				if val := fromJSON(v); val != nil {
					arr = append(arr, val)
				}
				return true
			})
			return arr
		}
		if data := r.Get(escapeKey(dataKey)); data.Type == gjson.String && len(r.Map()) == 1 {
			if b, err := base64.StdEncoding.DecodeString(data.Str); err == nil {
				return model.BytesValue(b)
			}
		}
		m := model.MapValue{}
		r.ForEach(func(k, v gjson.Result) bool {
			if val := fromJSON(v); val != nil {
				m[k.Str] = val
			}
			return true
		})
		return m
	}
	return nil
}

// toJSON 转换为可被 json 编码的普通值
func toJSON(v model.Value) any {
	switch x := v.(type) {
	case model.StringValue:
		return string(x)
	case model.IntValue:
		return int64(x)
	case model.BoolValue:
		return bool(x)
	case model.DoubleValue:
		return float64(x)
	case model.BytesValue:
		return map[string]string{dataKey: base64.StdEncoding.EncodeToString(x)}
	case model.ArrayValue:
		out := make([]any, 0, len(x))
		for _, e := range x {
			out = append(out, toJSON(e))
		}
		return out
	case model.MapValue:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = toJSON(e)
		}
		return out
	}
	return nil
}

// fromBytes 合法 UTF-8 文本按字符串展示
func fromBytes(b []byte) model.Value {
	if utf8.Valid(b) {
		return model.StringValue(b)
	}
	return model.BytesValue(b)
}

func isIntegral(raw string) bool {
	return !strings.ContainsAny(raw, ".eE")
}

// escapeKey 转义 gjson/sjson 路径中的特殊字符，使键按字面匹配
func escapeKey(k string) string {
	var b strings.Builder
	for _, c := range k {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func sortPreferences(prefs []model.Preference) {
	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Source != prefs[j].Source {
			return prefs[i].Source < prefs[j].Source
		}
		if prefs[i].Suite != prefs[j].Suite {
			return prefs[i].Suite < prefs[j].Suite
		}
		return prefs[i].Key < prefs[j].Key
	})
}

// ParseValue 解析 JSON 文本形式的偏好值，二进制使用 {"$data": base64}
func ParseValue(raw []byte) (model.Value, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrUnsupportedValue
	}
	v := fromJSON(gjson.ParseBytes(raw))
	if v == nil {
		return nil, ErrUnsupportedValue
	}
	return v, nil
}
