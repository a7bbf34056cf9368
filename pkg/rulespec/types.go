package rulespec

// ActionType 规则命中后的捕获行为
type ActionType string

const (
	// ActionSkip 放行请求但不记录
	ActionSkip ActionType = "skip"
	// ActionRedact 记录前遮盖敏感字段
	ActionRedact ActionType = "redact"
)

// Mode 规则求值模式
type Mode string

const (
	ModeAggregate    Mode = "aggregate"
	ModeShortCircuit Mode = "short_circuit"
)

// ConditionType 条件类型
type ConditionType string

const (
	ConditionURL    ConditionType = "url"
	ConditionMethod ConditionType = "method"
	ConditionHeader ConditionType = "header"
	ConditionQuery  ConditionType = "query"
	ConditionText   ConditionType = "text"
	ConditionJSON   ConditionType = "json"
)

// Config 规则配置
type Config struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Rule 单条捕获规则
type Rule struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Priority int      `yaml:"priority" json:"priority"`
	Mode     Mode     `yaml:"mode" json:"mode"`
	Match    Match    `yaml:"match" json:"match"`
	Actions  []Action `yaml:"actions" json:"actions"`
}

// Match 条件组合，三组同时满足才算命中
type Match struct {
	AllOf  []Condition `yaml:"allOf" json:"allOf"`
	AnyOf  []Condition `yaml:"anyOf" json:"anyOf"`
	NoneOf []Condition `yaml:"noneOf" json:"noneOf"`
}

// Condition 单个匹配条件
//
// url 条件使用 Mode(prefix/regex/exact/glob) + Pattern；
// method 条件使用 Values；header/query 使用 Key + Op + Value；
// text 匹配请求体文本；json 使用 gjson 路径 Path 取值后再按 Op 比较。
type Condition struct {
	Type    ConditionType `yaml:"type" json:"type"`
	Mode    string        `yaml:"mode" json:"mode,omitempty"`
	Pattern string        `yaml:"pattern" json:"pattern,omitempty"`
	Values  []string      `yaml:"values" json:"values,omitempty"`
	Key     string        `yaml:"key" json:"key,omitempty"`
	Op      string        `yaml:"op" json:"op,omitempty"`
	Value   string        `yaml:"value" json:"value,omitempty"`
	Path    string        `yaml:"path" json:"path,omitempty"`
}

// Action 命中后的行为
type Action struct {
	Type ActionType `yaml:"type" json:"type"`
	// Headers 需要遮盖的头部名
	Headers []string `yaml:"headers" json:"headers,omitempty"`
	// BodyPaths 需要遮盖的 JSON 体字段（sjson 路径）
	BodyPaths []string `yaml:"bodyPaths" json:"bodyPaths,omitempty"`
}
