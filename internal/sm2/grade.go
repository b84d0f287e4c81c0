package sm2

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGrade is returned for any grade outside 0..5.
var ErrInvalidGrade = errors.New("sm2: invalid grade")

// Grade is the user's recall rating on the SuperMemo 0-5 scale.
//
// The five-button scale (Again, Hard, Good, Easy, Perfect) maps onto
// grades 1..5 unchanged, so Again and Hard both count as a lapse.
type Grade int

const (
	Blackout Grade = iota // complete blackout
	Again                 // incorrect, the answer felt familiar
	Hard                  // incorrect, hard to recall
	Good                  // correct with serious difficulty
	Easy                  // correct after hesitation
	Perfect               // correct, easy
)

// PassingGrade is the lowest grade that counts as a successful recall.
const PassingGrade = Good

var gradeNames = [...]string{
	Blackout: "Blackout",
	Again:    "Again",
	Hard:     "Hard",
	Good:     "Good",
	Easy:     "Easy",
	Perfect:  "Perfect",
}

// Valid reports whether g is on the 0..5 scale.
func (g Grade) Valid() bool {
	return g >= Blackout && g <= Perfect
}

// Passed reports whether g is a successful recall.
func (g Grade) Passed() bool {
	return g >= PassingGrade
}

func (g Grade) String() string {
	if g.Valid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// ParseGrade accepts a digit 0-5 or a grade name, case-insensitive.
func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		g := Grade(n)
		if !g.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidGrade, n)
		}
		return g, nil
	}
	for i, name := range gradeNames {
		if strings.EqualFold(name, s) {
			return Grade(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
}
