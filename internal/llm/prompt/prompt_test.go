package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCreatePayload(t *testing.T) {
	tests := []struct {
		name                    string
		purpose, tone, audience string
		want                    string
	}{
		{"purpose only", "a tutoring assistant", "", "", `User Request: "a tutoring assistant"`},
		{"with tone", "a tutoring assistant", "formal", "", "User Request: \"a tutoring assistant\"\n- Desired Tone: Formal"},
		{"with audience", "a coach", "", " runners ", "User Request: \"a coach\"\n- Target Audience: runners"},
		{"all fields", "a coach", "Witty", "kids", "User Request: \"a coach\"\n- Desired Tone: Witty\n- Target Audience: kids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildCreatePayload(tt.purpose, tt.tone, tt.audience))
		})
	}
}

func TestNormalizeTone(t *testing.T) {
	assert.Equal(t, "Empathetic", NormalizeTone("EMPATHETIC"))
	assert.Equal(t, "Laid Back", NormalizeTone("laid back"))
	assert.Equal(t, "", NormalizeTone("   "))
}

func TestBuildRefineSystem(t *testing.T) {
	got := BuildRefineSystem("Persona: tutor")
	assert.True(t, strings.HasPrefix(got, RefineSystemInstruction))
	assert.True(t, strings.HasSuffix(got, "\n\n---\nPersona: tutor\n---"))
}

func TestGenerateSystemInstruction_Sections(t *testing.T) {
	for _, section := range []string{"Core Identity", "Key Responsibilities", "Rules & Constraints", "Interaction Style", "Example Opening"} {
		assert.Contains(t, GenerateSystemInstruction, section)
	}
	assert.Contains(t, GenerateSystemInstruction, "not a substitute for a licensed professional")
}

func TestFindRecommendation(t *testing.T) {
	r, ok := FindRecommendation("technical explainer")
	assert.True(t, ok)
	assert.Equal(t, "Formal", r.Tone)

	_, ok = FindRecommendation("unknown")
	assert.False(t, ok)
}
