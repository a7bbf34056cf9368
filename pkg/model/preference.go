package model

import "time"

// PreferenceSource 偏好来源
type PreferenceSource string

const (
	SourceUserDefaults PreferenceSource = "userDefaults"
	SourceKeychain     PreferenceSource = "keychain"
	SourcePropertyList PreferenceSource = "propertyList"
)

// ValueKind 偏好值的类型标签
type ValueKind string

const (
	KindString ValueKind = "String"
	KindInt    ValueKind = "Int"
	KindBool   ValueKind = "Bool"
	KindDouble ValueKind = "Double"
	KindBytes  ValueKind = "Data"
	KindArray  ValueKind = "Array"
	KindMap    ValueKind = "Dictionary"
)

// Value 封闭的偏好值联合类型，只有本包内的类型可以实现
type Value interface {
	Kind() ValueKind
	sealed()
}

type (
	StringValue string
	IntValue    int64
	BoolValue   bool
	DoubleValue float64
	BytesValue  []byte
	ArrayValue  []Value
	MapValue    map[string]Value
)

func (StringValue) Kind() ValueKind { return KindString }
func (IntValue) Kind() ValueKind    { return KindInt }
func (BoolValue) Kind() ValueKind   { return KindBool }
func (DoubleValue) Kind() ValueKind { return KindDouble }
func (BytesValue) Kind() ValueKind  { return KindBytes }
func (ArrayValue) Kind() ValueKind  { return KindArray }
func (MapValue) Kind() ValueKind    { return KindMap }

func (StringValue) sealed() {}
func (IntValue) sealed()    {}
func (BoolValue) sealed()   {}
func (DoubleValue) sealed() {}
func (BytesValue) sealed()  {}
func (ArrayValue) sealed()  {}
func (MapValue) sealed()    {}

// Preference 扫描时生成的偏好记录，不单独持久化
type Preference struct {
	Key       string           `json:"key"`
	Value     Value            `json:"value"`
	Type      ValueKind        `json:"type"`
	Source    PreferenceSource `json:"source"`
	Suite     string           `json:"suite,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// NewPreference 根据值推导类型标签
func NewPreference(key string, v Value, source PreferenceSource, suite string, at time.Time) Preference {
	var kind ValueKind
	if v != nil {
		kind = v.Kind()
	}
	return Preference{
		Key:       key,
		Value:     v,
		Type:      kind,
		Source:    source,
		Suite:     suite,
		Timestamp: at.UnixMilli(),
	}
}
