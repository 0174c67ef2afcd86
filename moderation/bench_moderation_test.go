package moderation

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Moderation_LargeBlockList(t *testing.T) {
	req := require.New(t)
	wordCount := 100_000
	words := make([]string, 0, wordCount)
	for i := 0; i < wordCount; i++ {
		words = append(words, fmt.Sprintf("blocked%dword", i))
	}

	startBuild := time.Now()
	filter, err := NewNameFilter(words, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	t.Logf("Built automaton for %d words in %v", wordCount, time.Since(startBuild))

	startScan := time.Now()
	word, blocked := filter.Blocked("xxblocked99999wordxx")
	t.Logf("Scanned one name in %v", time.Since(startScan))

	req.True(blocked)
	req.Equal("blocked99999word", word)

	_, blocked = filter.Blocked("alice")
	req.False(blocked)
}

func BenchmarkNameFilter_Blocked(b *testing.B) {
	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, fmt.Sprintf("blocked%dword", i))
	}
	filter, err := NewNameFilter(words, logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Blocked("a_perfectly_normal_name")
	}
}
