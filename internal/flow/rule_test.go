package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/model"
)

func cond(op model.Operator, v interface{}) model.Condition {
	return model.Condition{Operator: op, Value: v}
}

func TestEvaluate_Equals(t *testing.T) {
	cases := []struct {
		name   string
		cond   model.Condition
		answer interface{}
		want   bool
	}{
		{"bool true", cond(model.OpEquals, true), true, true},
		{"bool mismatch", cond(model.OpEquals, true), false, false},
		{"bool from string", cond(model.OpEquals, true), "true", true},
		{"int vs float", cond(model.OpEquals, 5), 5.0, true},
		{"numeric string", cond(model.OpEquals, 5), "5", true},
		{"json number", cond(model.OpEquals, json.Number("4.5")), 4.5, true},
		{"strings exact", cond(model.OpEquals, "Yes"), "Yes", true},
		{"strings case sensitive", cond(model.OpEquals, "Yes"), "yes", false},
		{"lists", cond(model.OpEquals, []interface{}{"a", "b"}), []string{"a", "b"}, true},
		{"nil answer", cond(model.OpEquals, "x"), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.cond, tc.answer))
		})
	}
}

func TestEvaluate_NotEqualsTypeMismatchIsFalse(t *testing.T) {
	ok, err := Check(cond(model.OpNotEquals, 3), "three")
	require.Error(t, err)
	assert.False(t, ok)

	assert.True(t, Evaluate(cond(model.OpNotEquals, "a"), "b"))
}

func TestEvaluate_Contains(t *testing.T) {
	assert.True(t, Evaluate(cond(model.OpContains, "price"), "the price was too high"))
	assert.False(t, Evaluate(cond(model.OpContains, "speed"), "the price was too high"))
	assert.True(t, Evaluate(cond(model.OpContains, "red"), []interface{}{"blue", "red"}))
	assert.False(t, Evaluate(cond(model.OpContains, 1), 12))
}

func TestEvaluate_NumericComparisonNeverPanics(t *testing.T) {
	assert.True(t, Evaluate(cond(model.OpGreaterThan, 3), 4))
	assert.False(t, Evaluate(cond(model.OpGreaterThan, 3), 3))
	assert.True(t, Evaluate(cond(model.OpLessThan, "10"), "9.5"))

	ok, err := Check(cond(model.OpGreaterThan, 3), "lots")
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, Evaluate(cond(model.OpLessThan, nil), 1))
	assert.False(t, Evaluate(cond(model.OpLessThan, "NaN"), 1))
}

func TestEvaluate_Membership(t *testing.T) {
	in := model.Condition{Operator: model.OpIn, Values: []interface{}{"a", "b"}}
	assert.True(t, Evaluate(in, "a"))
	assert.False(t, Evaluate(in, "c"))
	assert.True(t, Evaluate(in, []interface{}{"z", "b"}), "any selected option matches")

	notIn := model.Condition{Operator: model.OpNotIn, Value: []interface{}{1, 2}}
	assert.True(t, Evaluate(notIn, 3))
	assert.False(t, Evaluate(notIn, 2.0))

	_, err := Check(model.Condition{Operator: model.OpIn, Value: "a"}, "a")
	assert.Error(t, err, "in without a value set is malformed")
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	ok, err := Check(cond("matches", "x"), "x")
	require.Error(t, err)
	assert.False(t, ok)
}
