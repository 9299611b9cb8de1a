package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

func TestGet_ValidPrompt(t *testing.T) {
	clearCache()

	prompt, err := Get("matching.json", "select-reference-job")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "closest reference job")
	assert.Contains(t, prompt, "{{.Description}}")
}

func TestGet_InvalidFile(t *testing.T) {
	clearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	clearCache()

	_, err := Get("matching.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}!"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	result := Format(template, data)
	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	data := map[string]string{}

	result := Format(template, data)
	assert.Equal(t, template, result) // Placeholder remains
}

func TestCaching(t *testing.T) {
	clearCache()

	// First call loads from file
	prompt1, err := Get("matching.json", "select-reference-job")
	require.NoError(t, err)

	// Second call should use cache
	prompt2, err := Get("matching.json", "select-reference-job")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)

	cacheMu.RLock()
	_, cached := cache["matching.json"]
	cacheMu.RUnlock()
	assert.True(t, cached)
}

func TestRender(t *testing.T) {
	clearCache()

	out, err := Render("matching.json", "candidate-line", map[string]string{
		"Index":        "0",
		"JobCode":      "ENG-DATA-IC-P3",
		"Title":        "Data Engineer III",
		"Family":       "ENG",
		"Level":        "P3",
		"Similarity":   "0.91",
		"SkillOverlap": "0.50",
		"Description":  "Builds pipelines",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "[0] ENG-DATA-IC-P3 | Data Engineer III")

	_, err = Render("matching.json", "candidate-line", map[string]string{"Index": "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{.JobCode}}")
}

func TestFormat_ValuesAreNotReexpanded(t *testing.T) {
	result := Format("{{.A}} and {{.B}}", map[string]string{
		"A": "{{.B}}",
		"B": "bee",
	})
	assert.Equal(t, "{{.B}} and bee", result)
}
