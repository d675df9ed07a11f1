package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement_DefaultOperatorIsEquals(t *testing.T) {
	req, err := ParseRequirement("2.1")
	require.NoError(t, err)
	assert.Equal(t, "==", req.Op)
	assert.True(t, req.Satisfies("2.1"))
	assert.False(t, req.Satisfies("2.2"))
}

func TestParseRequirement_Operators(t *testing.T) {
	cases := []struct {
		req       string
		candidate string
		want      bool
	}{
		{">=2.0", "2.5", true},
		{">=2.0", "1.9", false},
		{"<=2.0", "2.0", true},
		{"<=2.0", "2.1", false},
		{">1.0", "1.0", false},
		{">1.0", "1.0.1", true},
		{"<1.0", "0.9", true},
		{"==1.0", "1.0.0", true},
	}
	for _, tc := range cases {
		req, err := ParseRequirement(tc.req)
		require.NoError(t, err, tc.req)
		assert.Equal(t, tc.want, req.Satisfies(tc.candidate), "%s vs %s", tc.req, tc.candidate)
	}
}

func TestParseRequirement_InvalidGrammar(t *testing.T) {
	_, err := ParseRequirement("not-a-version")
	assert.ErrorIs(t, err, ErrVersionRequirement)

	_, err = ParseRequirement("~=2.0")
	assert.ErrorIs(t, err, ErrVersionRequirement)
}

func TestRequirement_Satisfies_UnparsableCandidateFailsOpen(t *testing.T) {
	req, err := ParseRequirement(">=2.0")
	require.NoError(t, err)
	assert.True(t, req.Satisfies("not-numeric"))
}

func TestRequirement_Satisfies_NilRequirementAlwaysTrue(t *testing.T) {
	var req *Requirement
	assert.True(t, req.Satisfies("anything"))
}
