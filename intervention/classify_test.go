package intervention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyChoiceFromNumberedOptions(t *testing.T) {
	chunk := "Which approach should I take?\n1. Rewrite the module\n2. Patch in place\n3. Skip it"
	req := Classify("agt_1", chunk)
	require.NotNil(t, req)
	require.Equal(t, TypeChoice, req.Type)
	require.Equal(t, []string{"Rewrite the module", "Patch in place", "Skip it"}, req.Options)
}

func TestClassifyChoiceFromBulletedOptions(t *testing.T) {
	chunk := "Pick a strategy:\n- fast path\n- safe path"
	req := Classify("agt_1", chunk)
	require.NotNil(t, req)
	require.Equal(t, TypeChoice, req.Type)
	require.Equal(t, []string{"fast path", "safe path"}, req.Options)
}

func TestClassifyNumberedWinsOverBulletedWhenBothPresent(t *testing.T) {
	chunk := "1. first\n2. second\n- not an option\n- also not"
	req := Classify("agt_1", chunk)
	require.NotNil(t, req)
	require.Equal(t, TypeChoice, req.Type)
	require.Equal(t, []string{"first", "second"}, req.Options)
}

func TestClassifyApprovalPhrase(t *testing.T) {
	req := Classify("agt_1", "I will delete the staging database. Do you want me to proceed?")
	require.NotNil(t, req)
	require.Equal(t, TypeApproval, req.Type)
}

func TestClassifyWaitingForApprovalPhrase(t *testing.T) {
	req := Classify("agt_1", "Changes are ready. Waiting for approval before merging.")
	require.NotNil(t, req)
	require.Equal(t, TypeApproval, req.Type)
}

func TestClassifyWaitingForApprovalWithInterveningWords(t *testing.T) {
	req := Classify("agt_1", "Waiting for your approval to proceed.")
	require.NotNil(t, req)
	require.Equal(t, TypeApproval, req.Type)
}

func TestClassifyInputPhrase(t *testing.T) {
	req := Classify("agt_1", "Please enter a value for the API key")
	require.NotNil(t, req)
	require.Equal(t, TypeInput, req.Type)
}

func TestClassifyQuestionFallback(t *testing.T) {
	req := Classify("agt_1", "Is this the right directory?")
	require.NotNil(t, req)
	require.Equal(t, TypeQuestion, req.Type)
}

func TestClassifyIgnoresPlainOutput(t *testing.T) {
	require.Nil(t, Classify("agt_1", "Compiling package foo...\nDone in 1.2s"))
	require.Nil(t, Classify("agt_1", ""))
	require.Nil(t, Classify("agt_1", "   \n  "))
}

func TestClassifyApprovalBeatsQuestionWhenBothPresent(t *testing.T) {
	req := Classify("agt_1", "Do you want me to continue? It might take a while.")
	require.NotNil(t, req)
	require.Equal(t, TypeApproval, req.Type)
}

func TestClassifyContextTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	chunk := long + "\nDo you want me to proceed?"
	req := Classify("agt_1", chunk)
	require.NotNil(t, req)
	require.True(t, strings.HasPrefix(req.Context, "…"))
	require.LessOrEqual(t, len(req.Context), maxContextLen+len("…"))
}

func TestClassifyPromptIsLastNonOptionLine(t *testing.T) {
	chunk := "Some context here.\n\nChoose an approach:\n1. a\n2. b\n"
	req := Classify("agt_1", chunk)
	require.NotNil(t, req)
	require.Equal(t, "Choose an approach:", req.Prompt)
}
