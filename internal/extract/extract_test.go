package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinto/casefile/internal/docparse"
)

type fakeCompleter struct {
	resp   *anthropic.Message
	err    error
	calls  int
	params anthropic.MessageNewParams
}

func (f *fakeCompleter) Complete(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func toolUseMessage(input string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "tool_use", Name: extractionToolName, Input: json.RawMessage(input)},
		},
	}
}

func textMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func TestExtractMapsToolPayload(t *testing.T) {
	input := `{"extractions": [
		{"schema": "Person", "span": "John Doe", "confidence": 0.92, "charStart": 0, "charEnd": 8,
		 "properties": {"position": "CEO"}},
		{"schema": "Employment", "span": "John Doe, CEO of Acme Corp",
		 "properties": {"employee": "John Doe", "employer": "Acme Corp", "role": ["CEO"]}}
	]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "John Doe, CEO of Acme Corp.", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	person := candidates[0]
	assert.Equal(t, "Person", person.Schema)
	assert.Equal(t, []string{"John Doe"}, person.Properties["name"])
	assert.Equal(t, []string{"CEO"}, person.Properties["position"])
	assert.Equal(t, []string{"0.92"}, person.Properties["confidence"])
	assert.Equal(t, []string{"0"}, person.Properties["charStart"])
	assert.Equal(t, []string{"8"}, person.Properties["charEnd"])

	employment := candidates[1]
	assert.Equal(t, "Employment", employment.Schema)
	assert.Equal(t, []string{"John Doe"}, employment.Properties["employee"])
	assert.Equal(t, []string{"Acme Corp"}, employment.Properties["employer"])
	assert.Equal(t, []string{"CEO"}, employment.Properties["role"])
	assert.Equal(t, []string{"John Doe, CEO of Acme Corp"}, employment.Properties["name"])
}

func TestExtractForcesToolCall(t *testing.T) {
	fake := &fakeCompleter{resp: toolUseMessage(`{"extractions": []}`)}
	extractor := NewExtractor(fake, "claude-sonnet-4-5-20250929", 2048)

	_, err := extractor.Extract(context.Background(), "some text", docparse.TypeGeneral)
	require.NoError(t, err)

	require.NotNil(t, fake.params.ToolChoice.OfTool)
	assert.Equal(t, extractionToolName, fake.params.ToolChoice.OfTool.Name)
	require.Len(t, fake.params.Tools, 1)
	require.NotNil(t, fake.params.Tools[0].OfTool)
	assert.Equal(t, extractionToolName, fake.params.Tools[0].OfTool.Name)
	assert.Equal(t, int64(2048), fake.params.MaxTokens)
	require.Len(t, fake.params.System, 1)
	assert.Contains(t, fake.params.System[0].Text, "OSINT analyst")
}

func TestExtractPromptVariants(t *testing.T) {
	cases := []struct {
		documentType string
		contains     string
	}{
		{docparse.TypeSECFiling, "SEC filing"},
		{docparse.TypeEmail, "message body"},
	}
	for _, tc := range cases {
		fake := &fakeCompleter{resp: toolUseMessage(`{"extractions": []}`)}
		extractor := NewExtractor(fake, "", 0)

		_, err := extractor.Extract(context.Background(), "text", tc.documentType)
		require.NoError(t, err)
		require.Len(t, fake.params.System, 1)
		assert.Contains(t, fake.params.System[0].Text, tc.contains)
	}

	fake := &fakeCompleter{resp: toolUseMessage(`{"extractions": []}`)}
	extractor := NewExtractor(fake, "", 0)
	_, err := extractor.Extract(context.Background(), "text", docparse.TypeGeneral)
	require.NoError(t, err)
	assert.NotContains(t, fake.params.System[0].Text, "SEC filing")
}

func TestExtractDropsUnknownSchemas(t *testing.T) {
	input := `{"extractions": [
		{"schema": "Wizard", "span": "Gandalf"},
		{"schema": "Person", "span": "Jane Roe"}
	]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "Gandalf met Jane Roe.", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Person", candidates[0].Schema)
	assert.Equal(t, []string{"Jane Roe"}, candidates[0].Properties["name"])
}

func TestExtractKeepsExplicitName(t *testing.T) {
	input := `{"extractions": [
		{"schema": "Company", "span": "ACME", "properties": {"name": "Acme Corporation"}}
	]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "ACME reported earnings.", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, []string{"Acme Corporation"}, candidates[0].Properties["name"])
}

func TestExtractDropsPropertylessItems(t *testing.T) {
	input := `{"extractions": [{"schema": "Person"}]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "nothing usable", docparse.TypeGeneral)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtractCleansProperties(t *testing.T) {
	input := `{"extractions": [
		{"schema": "Ownership", "span": "owns 9.8% of Amazon.com",
		 "properties": {
			"owner": "Bezos Family Trust",
			"asset": "Amazon.com",
			"percentage": "9.8%",
			"date": "2023-12-31T00:00:00",
			"startDate": ""
		 }}
	]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "ownership text", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	props := candidates[0].Properties
	assert.Equal(t, []string{"9.8"}, props["percentage"])
	assert.Equal(t, []string{"2023-12-31"}, props["date"])
	assert.NotContains(t, props, "startDate")
}

func TestExtractCoercesScalarsAndLists(t *testing.T) {
	input := `{"extractions": [
		{"schema": "Payment", "span": "paid $1,250,000.50",
		 "properties": {"amount": 1250000.5, "currency": ["USD", "usd"], "payer": "Acme Corp", "beneficiary": "John Doe"}}
	]}`
	fake := &fakeCompleter{resp: toolUseMessage(input)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "payment text", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	props := candidates[0].Properties
	assert.Equal(t, []string{"1250000.5"}, props["amount"])
	assert.Equal(t, []string{"USD"}, props["currency"])
}

func TestExtractFallsBackToTextBlock(t *testing.T) {
	text := "```json\n{\"extractions\": [{\"schema\": \"Person\", \"span\": \"Jane Roe\"}]}\n```"
	fake := &fakeCompleter{resp: textMessage(text)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "Jane Roe appeared.", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Person", candidates[0].Schema)
}

func TestExtractTextBlockBareArray(t *testing.T) {
	fake := &fakeCompleter{resp: textMessage(`[{"schema": "Person", "span": "Jane Roe"}]`)}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "Jane Roe appeared.", docparse.TypeGeneral)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestExtractEmptyTextSkipsModel(t *testing.T) {
	fake := &fakeCompleter{}
	extractor := NewExtractor(fake, "", 0)

	candidates, err := extractor.Extract(context.Background(), "   \n\t", docparse.TypeGeneral)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Zero(t, fake.calls)
}

func TestExtractUnavailable(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("connection refused")}
	extractor := NewExtractor(fake, "", 0)

	_, err := extractor.Extract(context.Background(), "some text", docparse.TypeGeneral)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}

func TestExtractNoPayloadErrors(t *testing.T) {
	fake := &fakeCompleter{resp: &anthropic.Message{}}
	extractor := NewExtractor(fake, "", 0)

	_, err := extractor.Extract(context.Background(), "some text", docparse.TypeGeneral)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLLMUnavailable)
}
