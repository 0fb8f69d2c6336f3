package utils

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// BandExpressions holds a parsed list of band math expressions. A plain
// band name is the identity expression for that band. VarList is the
// set of source bands the expressions collectively reference, in first
// appearance order.
type BandExpressions struct {
	ExprText    []string
	ExprNames   []string
	Expressions []*goeval.EvaluableExpression
	ExprVarRef  [][]string
	VarList     []string
}

// ParseBandExpressions compiles band expressions of the form `expr` or
// `name=expr`.
func ParseBandExpressions(bands []string) (*BandExpressions, error) {
	bandExpr := &BandExpressions{}
	seenVars := make(map[string]bool)

	for _, bandRaw := range bands {
		band := strings.TrimSpace(bandRaw)
		if len(band) == 0 {
			return nil, fmt.Errorf("empty band expression")
		}

		name := band
		exprText := band
		if parts := strings.SplitN(band, "=", 2); len(parts) == 2 {
			name = strings.TrimSpace(parts[0])
			exprText = strings.TrimSpace(parts[1])
			if len(name) == 0 || len(exprText) == 0 {
				return nil, fmt.Errorf("invalid band expression '%s'", band)
			}
		}

		expr, err := goeval.NewEvaluableExpression(exprText)
		if err != nil {
			return nil, fmt.Errorf("parsing '%s': %v", exprText, err)
		}

		for _, token := range expr.Tokens() {
			switch token.Kind {
			case goeval.VARIABLE, goeval.NUMERIC, goeval.BOOLEAN, goeval.COMPARATOR,
				goeval.LOGICALOP, goeval.MODIFIER, goeval.PREFIX, goeval.CLAUSE,
				goeval.CLAUSE_CLOSE, goeval.TERNARY:
			default:
				return nil, fmt.Errorf("unsupported token '%v' in expression '%s'", token.Value, exprText)
			}
		}

		bandExpr.ExprText = append(bandExpr.ExprText, exprText)
		bandExpr.ExprNames = append(bandExpr.ExprNames, name)
		bandExpr.Expressions = append(bandExpr.Expressions, expr)

		varRef := expr.Vars()
		bandExpr.ExprVarRef = append(bandExpr.ExprVarRef, varRef)
		for _, v := range varRef {
			if !seenVars[v] {
				seenVars[v] = true
				bandExpr.VarList = append(bandExpr.VarList, v)
			}
		}
	}
	return bandExpr, nil
}
