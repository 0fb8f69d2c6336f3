package utils

import (
	"testing"
)

func TestParseBandExpressions(t *testing.T) {
	bandExpr, err := ParseBandExpressions([]string{"B1", "ndvi=(B2 - B1) / (B2 + B1)"})
	if err != nil {
		t.Fatalf("band expression test failed, %v", err)
	}

	if len(bandExpr.Expressions) != 2 {
		t.Fatalf("expression count test failed, actual %d", len(bandExpr.Expressions))
	}
	if bandExpr.ExprNames[0] != "B1" || bandExpr.ExprNames[1] != "ndvi" {
		t.Errorf("expression name test failed, actual %v", bandExpr.ExprNames)
	}
	if len(bandExpr.VarList) != 2 {
		t.Errorf("variable list test failed, actual %v", bandExpr.VarList)
	}

	params := map[string]interface{}{"B1": float64(2), "B2": float64(6)}
	result, err := bandExpr.Expressions[1].Evaluate(params)
	if err != nil {
		t.Fatalf("expression eval test failed, %v", err)
	}
	var val float64
	switch v := result.(type) {
	case float32:
		val = float64(v)
	case float64:
		val = v
	default:
		t.Fatalf("expression eval test failed, non numeric result %v", result)
	}
	if val != 0.5 {
		t.Errorf("expression eval test failed, actual %v", val)
	}
}

func TestParseBandExpressionsRejectsFunctions(t *testing.T) {
	if _, err := ParseBandExpressions([]string{"foo(B1)"}); err == nil {
		t.Errorf("function rejection test failed, expecting error")
	}
	if _, err := ParseBandExpressions([]string{""}); err == nil {
		t.Errorf("empty expression test failed, expecting error")
	}
}
