package directory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/leafpost/leafpost/internal/model/persona"
)

type fakeFetcher struct {
	raw json.RawMessage
	err error

	gotSort  string
	gotLimit int
}

func (f *fakeFetcher) Personas(_ context.Context, sortBy string, limit int) (json.RawMessage, error) {
	f.gotSort = sortBy
	f.gotLimit = limit
	return f.raw, f.err
}

func newService(f *fakeFetcher) (*Service, *persona.MemoryStore) {
	store := persona.NewMemoryStore(nil)
	return NewService(f, store, zerolog.Nop()), store
}

func TestListNormalizesBareArray(t *testing.T) {
	svc, store := newService(&fakeFetcher{raw: json.RawMessage(`[
		{"id": 1, "name": "Tom", "imageUrl": "https://img/1.png", "previewText": "Hiya!", "voiceId": "v1"},
		{"id": 2, "name": "Isabelle", "imageUrl": "https://img/2.png", "toneType": "v2"}
	]`)})

	result := svc.List(context.Background(), Options{})
	require.True(t, result.Complete)
	require.Len(t, result.Personas, 2)
	require.Equal(t, "v1", result.Personas[0].VoiceID)
	require.Equal(t, "Hiya!", result.Personas[0].SampleUtterance)
	require.Equal(t, "v2", result.Personas[1].VoiceID)

	// Normalized personas are cached for draft-time resolution.
	cached, ok := store.FindByID(2)
	require.True(t, ok)
	require.Equal(t, "Isabelle", cached.DisplayName)
}

func TestListVoiceIdentifierPriorityOrder(t *testing.T) {
	svc, _ := newService(&fakeFetcher{raw: json.RawMessage(`[
		{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "direct", "toneType": "shadowed"},
		{"id": 2, "name": "B", "imageUrl": "u", "tone_type": "snake"},
		{"id": 3, "name": "C", "imageUrl": "u", "tones": [{"toneType": "from-array"}]},
		{"id": 4, "name": "D", "imageUrl": "u", "tone": {"tone_type": "from-object"}},
		{"id": 5, "name": "E", "imageUrl": "u", "voiceId": "  ", "toneType": "after-blank"}
	]`)})

	result := svc.List(context.Background(), Options{})
	require.True(t, result.Complete)
	require.Len(t, result.Personas, 5)

	byID := make(map[int]string)
	for _, p := range result.Personas {
		byID[p.ID] = p.VoiceID
	}
	require.Equal(t, "direct", byID[1])
	require.Equal(t, "snake", byID[2])
	require.Equal(t, "from-array", byID[3])
	require.Equal(t, "from-object", byID[4])
	require.Equal(t, "after-blank", byID[5], "blank candidates must not win")
}

func TestListDropsRecordsWithoutVoiceIdentifier(t *testing.T) {
	svc, store := newService(&fakeFetcher{raw: json.RawMessage(`[
		{"id": 1, "name": "Voiceless", "imageUrl": "u", "tones": []},
		{"id": 2, "name": "Voiced", "imageUrl": "u", "voiceId": "v2"}
	]`)})

	result := svc.List(context.Background(), Options{})
	require.True(t, result.Complete)
	require.Len(t, result.Personas, 1)
	require.Equal(t, 2, result.Personas[0].ID)

	// Selecting the dropped persona must be impossible downstream.
	_, ok := store.FindByID(1)
	require.False(t, ok)
}

func TestListNestedEnvelopes(t *testing.T) {
	shapes := map[string]string{
		"data":        `{"data": [{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "v"}]}`,
		"nested data": `{"data": {"data": [{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "v"}]}}`,
		"items":       `{"items": [{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "v"}]}`,
		"results":     `{"results": [{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "v"}]}`,
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			svc, _ := newService(&fakeFetcher{raw: json.RawMessage(raw)})
			result := svc.List(context.Background(), Options{})
			require.True(t, result.Complete)
			require.Len(t, result.Personas, 1)
		})
	}
}

func TestListEmptyArrayIsCompleteNotMalformed(t *testing.T) {
	svc, _ := newService(&fakeFetcher{raw: json.RawMessage(`[]`)})
	result := svc.List(context.Background(), Options{})
	require.True(t, result.Complete, "an empty list is a valid result")
	require.Empty(t, result.Personas)
}

func TestListMalformedShapeIsIncomplete(t *testing.T) {
	for _, raw := range []string{`"surprise"`, `42`, `{"unexpected": true}`} {
		svc, _ := newService(&fakeFetcher{raw: json.RawMessage(raw)})
		result := svc.List(context.Background(), Options{})
		require.False(t, result.Complete, "shape %s should be incomplete", raw)
		require.Empty(t, result.Personas)
	}
}

func TestListRemoteFailureIsIncomplete(t *testing.T) {
	svc, _ := newService(&fakeFetcher{err: errors.New("connection refused")})
	result := svc.List(context.Background(), Options{})
	require.False(t, result.Complete)
	require.Empty(t, result.Personas)
}

func TestListClampsLimitAndForwardsSort(t *testing.T) {
	fetcher := &fakeFetcher{raw: json.RawMessage(`[]`)}
	svc, _ := newService(fetcher)

	svc.List(context.Background(), Options{Sort: "popular", Limit: 500})
	require.Equal(t, "popular", fetcher.gotSort)
	require.Equal(t, 100, fetcher.gotLimit)
}

func TestListRanksByUsageCount(t *testing.T) {
	svc, _ := newService(&fakeFetcher{raw: json.RawMessage(`[
		{"id": 1, "name": "A", "imageUrl": "u", "voiceId": "v", "usageCount": 3},
		{"id": 2, "name": "B", "imageUrl": "u", "voiceId": "v", "usage_count": 10},
		{"id": 3, "name": "C", "imageUrl": "u", "voiceId": "v", "count": 7},
		{"id": 4, "name": "D", "imageUrl": "u", "voiceId": "v"}
	]`)})

	result := svc.List(context.Background(), Options{})
	require.True(t, result.Complete)

	rank := make(map[int]int)
	for _, p := range result.Personas {
		rank[p.ID] = p.PopularityRank
	}
	require.Equal(t, 1, rank[2])
	require.Equal(t, 2, rank[3])
	require.Equal(t, 3, rank[1])
	require.Zero(t, rank[4], "records without a usage count stay unranked")
}
