package rules

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"netinspect/pkg/rulespec"
	"netinspect/pkg/traffic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Mask 遮盖后的占位值
const Mask = "***"

// Engine 捕获规则引擎，可在运行时替换规则
type Engine struct {
	mu    sync.RWMutex
	rules []rulespec.Rule
}

// New 创建规则引擎
func New(rules []rulespec.Rule) *Engine {
	e := &Engine{}
	e.Update(rules)
	return e
}

// Update 替换规则，按优先级降序保存，同优先级保持原顺序
func (e *Engine) Update(rules []rulespec.Rule) {
	cp := make([]rulespec.Rule, len(rules))
	copy(cp, rules)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Priority > cp[j].Priority })
	e.mu.Lock()
	e.rules = cp
	e.mu.Unlock()
}

// Rules 当前规则副本
func (e *Engine) Rules() []rulespec.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make([]rulespec.Rule, len(e.rules))
	copy(cp, e.rules)
	return cp
}

// Ctx 规则求值所需的请求信息
type Ctx struct {
	URL     string
	Method  string
	Headers traffic.Header
	Body    []byte
}

// Decision 求值结果
type Decision struct {
	RuleIDs     []string
	Skip        bool
	RedactHdrs  []string
	RedactPaths []string
}

// Matched 是否有规则命中
func (d Decision) Matched() bool { return len(d.RuleIDs) > 0 }

// Eval 按优先级求值。
// 命中 short_circuit 规则后停止；aggregate 规则的动作会累加。
func (e *Engine) Eval(ctx Ctx) Decision {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var d Decision
	if len(rules) == 0 {
		return d
	}
	query := parseQuery(ctx.URL)
	for i := range rules {
		r := &rules[i]
		if !matchRule(ctx, query, r.Match) {
			continue
		}
		d.RuleIDs = append(d.RuleIDs, r.ID)
		for _, a := range r.Actions {
			switch a.Type {
			case rulespec.ActionSkip:
				d.Skip = true
			case rulespec.ActionRedact:
				d.RedactHdrs = append(d.RedactHdrs, a.Headers...)
				d.RedactPaths = append(d.RedactPaths, a.BodyPaths...)
			}
		}
		if r.Mode == rulespec.ModeShortCircuit {
			break
		}
	}
	return d
}

// RedactHeaders 返回遮盖后的头部副本
func (d Decision) RedactHeaders(h traffic.Header) traffic.Header {
	if len(d.RedactHdrs) == 0 {
		return h
	}
	out := h.Clone()
	for _, k := range d.RedactHdrs {
		if out.Get(k) != "" {
			out.Set(k, Mask)
		}
	}
	return out
}

// RedactBody 遮盖 JSON 体中的指定路径，非 JSON 或路径不存在时原样返回
func (d Decision) RedactBody(body []byte) []byte {
	if len(d.RedactPaths) == 0 || !gjson.ValidBytes(body) {
		return body
	}
	out := body
	for _, p := range d.RedactPaths {
		if !gjson.GetBytes(out, p).Exists() {
			continue
		}
		next, err := sjson.SetBytes(out, p, Mask)
		if err != nil {
			continue
		}
		out = next
	}
	return out
}

func matchRule(ctx Ctx, query url.Values, m rulespec.Match) bool {
	ok := true
	if len(m.AllOf) > 0 {
		ok = ok && allOf(ctx, query, m.AllOf)
	}
	if len(m.AnyOf) > 0 {
		ok = ok && anyOf(ctx, query, m.AnyOf)
	}
	if len(m.NoneOf) > 0 {
		ok = ok && !anyOf(ctx, query, m.NoneOf)
	}
	return ok
}

func allOf(ctx Ctx, q url.Values, cs []rulespec.Condition) bool {
	for i := range cs {
		if !cond(ctx, q, cs[i]) {
			return false
		}
	}
	return true
}

func anyOf(ctx Ctx, q url.Values, cs []rulespec.Condition) bool {
	for i := range cs {
		if cond(ctx, q, cs[i]) {
			return true
		}
	}
	return false
}

func cond(ctx Ctx, q url.Values, c rulespec.Condition) bool {
	switch c.Type {
	case rulespec.ConditionURL:
		switch c.Mode {
		case "prefix":
			return strings.HasPrefix(ctx.URL, c.Pattern)
		case "regex":
			return matchRegex(ctx.URL, c.Pattern)
		case "exact":
			return ctx.URL == c.Pattern
		default:
			return glob(ctx.URL, c.Pattern)
		}
	case rulespec.ConditionMethod:
		for _, v := range c.Values {
			if strings.EqualFold(ctx.Method, v) {
				return true
			}
		}
		return false
	case rulespec.ConditionHeader:
		v := ctx.Headers.Get(c.Key)
		if v == "" {
			return false
		}
		return compare(v, c.Op, c.Value)
	case rulespec.ConditionQuery:
		if !q.Has(c.Key) {
			return false
		}
		return compare(q.Get(c.Key), c.Op, c.Value)
	case rulespec.ConditionText:
		if len(ctx.Body) == 0 {
			return false
		}
		return compare(string(ctx.Body), c.Op, c.Value)
	case rulespec.ConditionJSON:
		if len(ctx.Body) == 0 {
			return false
		}
		r := gjson.GetBytes(ctx.Body, c.Path)
		if !r.Exists() {
			return false
		}
		return compare(r.String(), c.Op, c.Value)
	default:
		return false
	}
}

// compare 空 Op 只要求值存在
func compare(v, op, want string) bool {
	switch op {
	case "equals":
		return v == want
	case "contains":
		return strings.Contains(v, want)
	case "regex":
		return matchRegex(v, want)
	default:
		return true
	}
}

func parseQuery(raw string) url.Values {
	u, err := url.Parse(raw)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

func matchRegex(s, pattern string) bool {
	re, err := regexCache.Get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func glob(s, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case len(pattern) > 1 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(s, strings.Trim(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	return s == pattern
}
