package copilot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
	lastUser string
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testSnapshot() *WorkspaceSnapshot {
	return &WorkspaceSnapshot{
		WorkspaceName: "Test Tenant",
		OperatorRole:  "OWNER",
		Programs:      []SnapshotProgram{{ID: 1, Name: "Intake", Slug: "intake", Persona: "CLIENT"}},
	}
}

func TestClassifyParsesProposals(t *testing.T) {
	stub := &stubCompleter{response: `{
		"message": "Puedo crear el programa.",
		"proposals": [{
			"title": "Crear programa",
			"commands": [{"type": "CREATE_PROGRAM", "name": "Ventas", "agentSystemPrompt": "ayuda a vender"}]
		}]
	}`}
	a := NewLLMAssistant(stub)

	reply, err := a.Classify(context.Background(), testSnapshot(), "crea un programa de ventas")
	require.NoError(t, err)

	assert.Equal(t, "Puedo crear el programa.", reply.Message)
	require.Len(t, reply.Proposals, 1)
	assert.NotEmpty(t, reply.Proposals[0].ID, "missing proposal ids are generated")
	assert.Equal(t, CmdCreateProgram, reply.Proposals[0].Commands[0].Type)
	assert.Contains(t, stub.lastUser, "Test Tenant")
}

func TestClassifyHandlesFencedJSON(t *testing.T) {
	stub := &stubCompleter{response: "Here you go:\n```json\n{\"message\": \"Listo.\", \"proposals\": []}\n```"}
	a := NewLLMAssistant(stub)

	reply, err := a.Classify(context.Background(), testSnapshot(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "Listo.", reply.Message)
	assert.Empty(t, reply.Proposals)
}

func TestClassifyDropsInvalidProposals(t *testing.T) {
	stub := &stubCompleter{response: `{
		"message": "Dos propuestas.",
		"proposals": [
			{"title": "Válida", "commands": [{"type": "RUN_SMOKE_SCENARIOS"}]},
			{"title": "Rota", "commands": [{"type": "TEMP_OFF_OUTBOUND", "minutes": 9999}]}
		]
	}`}
	a := NewLLMAssistant(stub)

	reply, err := a.Classify(context.Background(), testSnapshot(), "haz cosas")
	require.NoError(t, err)
	require.Len(t, reply.Proposals, 1)
	assert.Equal(t, "Válida", reply.Proposals[0].Title)
}

func TestClassifyProviderFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection reset")}
	a := NewLLMAssistant(stub)

	_, err := a.Classify(context.Background(), testSnapshot(), "hola")
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindProvider, kind)
}

func TestClassifyUnreadablePayload(t *testing.T) {
	stub := &stubCompleter{response: "I cannot answer in JSON today, sorry."}
	a := NewLLMAssistant(stub)

	_, err := a.Classify(context.Background(), testSnapshot(), "hola")
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindProvider, kind)
}
