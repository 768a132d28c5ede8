package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	p, err = ParseProvider(" Groq ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, p)

	_, err = ParseProvider("GPTAssistantHandler")
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	c, err := NewProvider(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	c, err = NewProvider(LLMConfig{Provider: ProviderGroq, APIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewProvider(LLMConfig{Provider: ProviderAzure, APIKey: "k"})
	assert.Error(t, err)

	_, err = NewProvider(LLMConfig{Provider: "nope"})
	assert.Error(t, err)
}
