package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/angelospk/animatch/pkg/core/errors"
)

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		expr string
		base int
		want int
	}{
		{"placeholder offset", "EP+12", 5, 17},
		{"placeholder scale", "EP*2", 12, 24},
		{"at-prefixed", "@*2+1", 3, 7},
		{"operator prefix implies base", "+1", 24, 25},
		{"plain reassignment", "5", 99, 5},
		{"parentheses", "(EP+1)*2", 4, 10},
		{"modulo", "EP%13", 25, 12},
		{"division truncates", "EP/2", 25, 12},
		{"negative result", "EP-30", 12, -18},
		{"lowercase ep", "ep+1", 7, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalRejectsNonArithmetic(t *testing.T) {
	for _, expr := range []string{
		"",
		"EP+os.system('x')",
		"__import__",
		"1+x",
		"(1+2",
		"1//",
	} {
		_, err := Eval(expr, 1)
		assert.ErrorIs(t, err, apperrors.ErrBadFormula, "expr %q", expr)
	}
}

func TestEvalArithmeticDivisionByZero(t *testing.T) {
	_, err := EvalArithmetic("10/0")
	assert.ErrorIs(t, err, apperrors.ErrBadFormula)
}
