package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

func TestChatCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range chatCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"new", "list", "show", "update", "delete", "send", "repl", "export"}, names)
}

func TestChatNew(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "new", "--title", "Research", "--model", "mistral", "--no-rag")

	require.NoError(t, err)
	require.Len(t, chat.created, 1)
	assert.Equal(t, "Research", chat.created[0].Title)
	assert.Equal(t, "mistral", chat.created[0].Model)
	require.NotNil(t, chat.created[0].UseRAG)
	assert.False(t, *chat.created[0].UseRAG)
	assert.Contains(t, out, "Created session sess-1")
}

func TestChatNew_DefaultsToRAG(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "new")

	require.NoError(t, err)
	require.Len(t, chat.created, 1)
	require.NotNil(t, chat.created[0].UseRAG)
	assert.True(t, *chat.created[0].UseRAG)
}

func TestChatList(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()
	chat.sessions = []domain.ChatSession{*chat.session}

	out, err := execute(t, "chat", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "Title: Research")
	assert.Contains(t, out, "RAG: on")
	assert.Contains(t, out, "Total: 1 sessions")
}

func TestChatList_Empty(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No chat sessions.")
}

func TestChatShow(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "show", "sess-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Messages: 2")
	assert.Contains(t, out, "What changed?")
	assert.Contains(t, out, "Revenue grew.")
	assert.Less(t, strings.Index(out, "What changed?"), strings.Index(out, "Revenue grew."))
}

func TestChatUpdate(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "update", "sess-1", "--title", "Renamed", "--rag", "off")

	require.NoError(t, err)
	require.Len(t, chat.updates, 1)
	u := chat.updates[0]
	require.NotNil(t, u.Title)
	assert.Equal(t, "Renamed", *u.Title)
	assert.Nil(t, u.Model)
	require.NotNil(t, u.UseRAG)
	assert.False(t, *u.UseRAG)
}

func TestChatUpdate_NothingToUpdate(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "update", "sess-1")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, chat.updates)
}

func TestChatUpdate_InvalidRAG(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "update", "sess-1", "--rag", "maybe")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatDelete(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "delete", "sess-1")

	require.NoError(t, err)
	assert.Equal(t, "sess-1", chat.deleted)
	assert.Contains(t, out, "Deleted session sess-1")
}

func TestChatSend_TemperatureFlag(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "send", "sess-1", "hi", "--temperature", "0")
	require.NoError(t, err)
	require.NotNil(t, chat.opts.Temperature)
	assert.Zero(t, *chat.opts.Temperature)

	_, err = execute(t, "chat", "send", "sess-1", "hi")
	require.NoError(t, err)
	assert.Nil(t, chat.opts.Temperature)
}

func TestChatSend(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "send", "sess-1", "How", "did", "revenue", "change?",
		"--temperature", "0.2", "-k", "5", "--sources")

	require.NoError(t, err)
	assert.Equal(t, []string{"How did revenue change?"}, chat.turns)
	require.NotNil(t, chat.opts.Temperature)
	assert.InDelta(t, 0.2, *chat.opts.Temperature, 1e-9)
	assert.Equal(t, 5, chat.opts.MaxResults)
	assert.Contains(t, out, "Grounded reply.")
	assert.Contains(t, out, "report.txt (part 1 of 1)")
}

func TestChatSend_DegradedRetrieval(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()
	chat.result = &domain.TurnResult{
		Message:   domain.Message{Content: "Best effort."},
		Retrieval: domain.Degraded(domain.ErrIndexUnavailable),
	}

	out, err := execute(t, "chat", "send", "sess-1", "question")

	require.NoError(t, err)
	assert.Contains(t, out, "Best effort.")
	assert.Contains(t, out, "Warning: retrieval degraded")
}

func TestChatSend_Error(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()
	chat.err = domain.ErrGeneration

	_, err := execute(t, "chat", "send", "sess-1", "question")

	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestChatRepl_ReadsUntilQuit(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"chat", "repl", "sess-1"})
	rootCmd.SetIn(strings.NewReader("first question\n\n  second question  \n/quit\nignored\n"))
	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, []string{"first question", "second question"}, chat.turns)
	assert.Empty(t, chat.created)
	assert.NotContains(t, out.String(), "> ")
}

func TestChatRepl_CreatesSession(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "repl", "--model", "mistral")

	require.NoError(t, err)
	require.Len(t, chat.created, 1)
	assert.Equal(t, "mistral", chat.created[0].Model)
	assert.Contains(t, out, "Started session sess-1")
	assert.Empty(t, chat.turns)
}

func TestChatExport_JSON(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "export", "sess-1")

	require.NoError(t, err)
	var decoded domain.ChatSession
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "sess-1", decoded.ID)
	assert.Len(t, decoded.Messages, 2)
}

func TestChatExport_YAMLToFile(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "chat.yaml")
	out, err := execute(t, "chat", "export", "sess-1", "--format", "yaml", "-o", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Exported session sess-1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded domain.ChatSession
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "Research", decoded.Title)
	assert.True(t, decoded.UseRAG)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, domain.RoleAssistant, decoded.Messages[1].Role)
}

func TestChatExport_UnknownFormat(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "export", "sess-1", "--format", "xml")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestModels(t *testing.T) {
	_, chat, _, cleanup := setupTestServices()
	defer cleanup()
	chat.models = []domain.ModelInfo{{Name: "llama3.2", Size: 2 * 1024 * 1024, ModifiedAt: testTime}, {Name: "mistral"}}

	out, err := execute(t, "models")

	require.NoError(t, err)
	assert.Contains(t, out, "llama3.2  (2.0 MB)")
	assert.Contains(t, out, "mistral")
}

func TestModels_Empty(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "models")

	require.NoError(t, err)
	assert.Contains(t, out, "No models available.")
}
