package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "single sentence",
			text: "O horário de funcionamento é das 8h às 18h.",
			want: []string{"O horário de funcionamento é das 8h às 18h."},
		},
		{
			name: "mixed terminators",
			text: "Primeira frase. Segunda frase! Terceira frase?",
			want: []string{"Primeira frase.", "Segunda frase!", "Terceira frase?"},
		},
		{
			name: "no terminator yields nothing",
			text: "texto sem pontuação final",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildChunks_Empty(t *testing.T) {
	assert.Nil(t, BuildChunks(""))
	assert.Nil(t, BuildChunks("   \n\t  "))
}

func TestBuildChunks_ShortTextSingleChunk(t *testing.T) {
	text := "Uma frase curta. Outra frase curta."
	chunks := BuildChunks(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestBuildChunks_LongTextSplitsWithOverlap(t *testing.T) {
	sentence := "Esta frase tem exatamente um tamanho razoável para o teste de divisão em blocos."
	text := strings.Repeat(sentence+" ", 30)

	chunks := BuildChunks(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		// A chunk may exceed the target by one sentence plus the overlap seed,
		// never by more.
		assert.LessOrEqual(t, len([]rune(chunk)), chunkSize+len([]rune(sentence))+chunkOverlap+4)
	}

	// Each chunk after the first starts with the overlap marker from the
	// previous chunk's tail.
	for _, chunk := range chunks[1:] {
		assert.Contains(t, chunk, "... ")
	}
}

func TestBuildChunks_Deterministic(t *testing.T) {
	text := strings.Repeat("Frase repetida para verificar o comportamento estável do algoritmo. ", 25)

	first := BuildChunks(text)
	second := BuildChunks(text)

	assert.Equal(t, first, second)
}

func TestBuildChunks_NoSentenceBoundariesFallsBackToWindows(t *testing.T) {
	text := strings.Repeat("abcdefghij", 120) // 1200 runes, no punctuation

	chunks := BuildChunks(text)
	require.Greater(t, len(chunks), 1)

	step := chunkSize - chunkOverlap
	assert.Equal(t, (len(text)+step-1)/step, len(chunks))
	assert.Equal(t, text[:chunkSize], chunks[0])
	// Consecutive windows share the overlap region.
	assert.Equal(t, chunks[0][step:], chunks[1][:chunkOverlap])
}

func TestOverlapTail(t *testing.T) {
	t.Run("short tail returned whole", func(t *testing.T) {
		assert.Equal(t, "Fim.", overlapTail("Fim."))
	})

	t.Run("capped at overlap size", func(t *testing.T) {
		chunk := "Primeira frase bem longa do bloco. Segunda frase igualmente longa aqui. Terceira frase final do bloco."
		tail := overlapTail(chunk)
		assert.LessOrEqual(t, len([]rune(tail)), chunkOverlap)
		assert.True(t, strings.HasSuffix(chunk, tail))
	})

	t.Run("only last three sentences considered", func(t *testing.T) {
		chunk := "Um. Dois. Três. Quatro. Cinco."
		assert.Equal(t, "Três. Quatro. Cinco.", overlapTail(chunk))
	})
}
