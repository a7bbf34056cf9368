package rules

import (
	"testing"

	"netinspect/pkg/rulespec"
	"netinspect/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ConditionTypes(t *testing.T) {
	ctx := Ctx{
		URL:     "https://api.example.com/v1/login?debug=1",
		Method:  "post",
		Headers: traffic.FromMap(map[string]string{"Authorization": "Bearer abc"}),
		Body:    []byte(`{"user":{"name":"ann","password":"pw"}}`),
	}

	testCases := []struct {
		name  string
		cond  rulespec.Condition
		match bool
	}{
		{"url glob suffix", rulespec.Condition{Type: rulespec.ConditionURL, Pattern: "*debug=1"}, true},
		{"url glob contains", rulespec.Condition{Type: rulespec.ConditionURL, Pattern: "*/v1/*"}, true},
		{"url prefix", rulespec.Condition{Type: rulespec.ConditionURL, Mode: "prefix", Pattern: "https://api."}, true},
		{"url exact miss", rulespec.Condition{Type: rulespec.ConditionURL, Mode: "exact", Pattern: "https://api.example.com"}, false},
		{"url regex", rulespec.Condition{Type: rulespec.ConditionURL, Mode: "regex", Pattern: `/v\d+/login`}, true},
		{"bad regex never matches", rulespec.Condition{Type: rulespec.ConditionURL, Mode: "regex", Pattern: `(`}, false},
		{"method case-insensitive", rulespec.Condition{Type: rulespec.ConditionMethod, Values: []string{"GET", "POST"}}, true},
		{"header contains", rulespec.Condition{Type: rulespec.ConditionHeader, Key: "authorization", Op: "contains", Value: "Bearer"}, true},
		{"header missing", rulespec.Condition{Type: rulespec.ConditionHeader, Key: "X-Trace"}, false},
		{"query equals", rulespec.Condition{Type: rulespec.ConditionQuery, Key: "debug", Op: "equals", Value: "1"}, true},
		{"text contains", rulespec.Condition{Type: rulespec.ConditionText, Op: "contains", Value: "password"}, true},
		{"json path", rulespec.Condition{Type: rulespec.ConditionJSON, Path: "user.name", Op: "equals", Value: "ann"}, true},
		{"json path missing", rulespec.Condition{Type: rulespec.ConditionJSON, Path: "user.email"}, false},
		{"unknown type", rulespec.Condition{Type: "cookie"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := New([]rulespec.Rule{{
				ID:      "r",
				Match:   rulespec.Match{AllOf: []rulespec.Condition{tc.cond}},
				Actions: []rulespec.Action{{Type: rulespec.ActionSkip}},
			}})
			assert.Equal(t, tc.match, e.Eval(ctx).Matched())
		})
	}
}

func TestEngine_PriorityAndModes(t *testing.T) {
	everything := rulespec.Match{AllOf: []rulespec.Condition{{Type: rulespec.ConditionURL, Pattern: "*"}}}
	e := New([]rulespec.Rule{
		{ID: "low", Priority: 1, Match: everything, Actions: []rulespec.Action{{Type: rulespec.ActionSkip}}},
		{ID: "high", Priority: 10, Mode: rulespec.ModeAggregate, Match: everything,
			Actions: []rulespec.Action{{Type: rulespec.ActionRedact, Headers: []string{"Authorization"}}}},
		{ID: "mid", Priority: 5, Mode: rulespec.ModeShortCircuit, Match: everything,
			Actions: []rulespec.Action{{Type: rulespec.ActionRedact, BodyPaths: []string{"token"}}}},
	})

	d := e.Eval(Ctx{URL: "https://x"})
	assert.Equal(t, []string{"high", "mid"}, d.RuleIDs)
	assert.False(t, d.Skip)
	assert.Equal(t, []string{"Authorization"}, d.RedactHdrs)
	assert.Equal(t, []string{"token"}, d.RedactPaths)
}

func TestEngine_NoneOf(t *testing.T) {
	e := New([]rulespec.Rule{{
		ID: "not-health",
		Match: rulespec.Match{
			NoneOf: []rulespec.Condition{{Type: rulespec.ConditionURL, Pattern: "*/health"}},
		},
		Actions: []rulespec.Action{{Type: rulespec.ActionSkip}},
	}})
	assert.False(t, e.Eval(Ctx{URL: "https://x/health"}).Skip)
	assert.True(t, e.Eval(Ctx{URL: "https://x/users"}).Skip)
}

func TestDecision_Redact(t *testing.T) {
	d := Decision{RedactHdrs: []string{"Authorization", "Cookie"}, RedactPaths: []string{"password", "items.0.secret"}}

	h := traffic.FromMap(map[string]string{"Authorization": "Bearer abc", "Accept": "*/*"})
	out := d.RedactHeaders(h)
	assert.Equal(t, Mask, out.Get("authorization"))
	assert.Equal(t, "*/*", out.Get("accept"))
	assert.Equal(t, "", out.Get("cookie"))
	assert.Equal(t, "Bearer abc", h.Get("authorization"), "input untouched")

	body := d.RedactBody([]byte(`{"password":"pw","items":[{"secret":1}],"name":"ann"}`))
	require.JSONEq(t, `{"password":"***","items":[{"secret":"***"}],"name":"ann"}`, string(body))

	plain := []byte("password=pw")
	assert.Equal(t, plain, d.RedactBody(plain))
}
