package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func writeInstructions(t *testing.T, base string, files map[string]string) {
	t.Helper()
	fs := afs.New()
	ctx := context.Background()
	for name, content := range files {
		require.NoError(t, fs.Upload(ctx, base+"/"+name, 0o644, strings.NewReader(content)))
	}
}

func TestFileLoader(t *testing.T) {
	base := "mem://localhost/loader/instructions"
	writeInstructions(t, base, map[string]string{
		"templates/persona.txt": "You are {{.Assistant}}.",
		"sage/sage.txt":         "Sage likes tea.",
		"sage/42.txt":           "User 42 likes coffee.",
	})
	loader := NewFileLoader(base)
	ctx := context.Background()

	assert.Equal(t, "You are {{.Assistant}}.", loader.LoadTemplate(ctx, "persona"))
	assert.Equal(t, "Sage likes tea.", loader.LoadCharacterSheet(ctx, "Sage", ""))
	assert.Equal(t, "User 42 likes coffee.", loader.LoadCharacterSheet(ctx, "Sage", "42"))
	assert.Equal(t, "", loader.LoadCharacterSheet(ctx, "Sage", "7"))
	assert.Equal(t, "", loader.LoadTemplate(ctx, "missing"))
}
