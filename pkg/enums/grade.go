package enums

import (
	"fmt"
	"strings"
)

// Grade is the kernel grade a requirement asks for.
type Grade string

const (
	GradeW180  Grade = "W180"
	GradeW210  Grade = "W210"
	GradeW240  Grade = "W240"
	GradeW320  Grade = "W320"
	GradeW450  Grade = "W450"
	GradeSW240 Grade = "SW240"
	GradeSW320 Grade = "SW320"
	GradeLWP   Grade = "LWP"
	GradeSWP   Grade = "SWP"
	GradeBB    Grade = "BB"
)

var validGrades = []Grade{
	GradeW180,
	GradeW210,
	GradeW240,
	GradeW320,
	GradeW450,
	GradeSW240,
	GradeSW320,
	GradeLWP,
	GradeSWP,
	GradeBB,
}

func (g Grade) String() string {
	return string(g)
}

func (g Grade) IsValid() bool {
	for _, candidate := range validGrades {
		if candidate == g {
			return true
		}
	}
	return false
}

// Grades lists every supported grade.
func Grades() []Grade {
	out := make([]Grade, len(validGrades))
	copy(out, validGrades)
	return out
}

// ParseGrade is case-insensitive.
func ParseGrade(value string) (Grade, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validGrades {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid grade %q", value)
}
