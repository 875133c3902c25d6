package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
)

func stubStream(chunks ...provider.StreamChunk) func(context.Context, provider.Request) (<-chan provider.StreamChunk, error) {
	return func(context.Context, provider.Request) (<-chan provider.StreamChunk, error) {
		out := make(chan provider.StreamChunk, len(chunks))
		for _, c := range chunks {
			out <- c
		}
		close(out)
		return out, nil
	}
}

func collectStream(t *testing.T, ch <-chan provider.StreamChunk) []provider.StreamChunk {
	t.Helper()
	var got []provider.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, chunk)
		case <-timeout:
			t.Fatal("stream did not finish in time")
		}
	}
}

func TestStreamPublicPassesThrough(t *testing.T) {
	inhouse := &stubAdapter{streamFn: stubStream(
		provider.StreamChunk{Text: "Een vruchtgebruik "},
		provider.StreamChunk{Text: "is een zakelijk recht."},
		provider.StreamChunk{Done: true, Usage: provider.TokenUsage{InputTokens: 8, OutputTokens: 12}},
	)}
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "inhouse", TrustTier: provider.TrustDomestic,
			DefaultModel: "m", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	g, recorder := newTestGateway(t, src, nil)

	ch, err := g.Stream(context.Background(), Request{
		Messages:    userMessage("Wat is een vruchtgebruik?"),
		Sensitivity: tierPtr(classify.TierPublic),
	})
	require.NoError(t, err)

	chunks := collectStream(t, ch)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Een vruchtgebruik ", chunks[0].Text)
	assert.Equal(t, "is een zakelijk recht.", chunks[1].Text)
	assert.True(t, chunks[2].Done)
	assert.Equal(t, int32(12), chunks[2].Usage.OutputTokens)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, hashText("Een vruchtgebruik is een zakelijk recht."), entries[0].ResponseHash)
}

func TestStreamProtectedTierIsBuffered(t *testing.T) {
	abroad := &stubAdapter{streamFn: stubStream(
		provider.StreamChunk{Text: "[PERSON"},
		provider.StreamChunk{Text: "_1] kan de opzegging betwisten."},
		provider.StreamChunk{Done: true, Usage: provider.TokenUsage{OutputTokens: 9}},
	)}
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "abroad", TrustTier: provider.TrustConditional,
			DefaultModel: "gpt-4o", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{"abroad": abroad},
	}
	g, recorder := newTestGateway(t, src, nil)

	ch, err := g.Stream(context.Background(), Request{
		Messages: userMessage("Kan de cliënt Jan Peeters de opzegging betwisten?"),
	})
	require.NoError(t, err)

	// The provider saw placeholders only.
	sent := abroad.lastRequest().Messages[0].Content
	assert.NotContains(t, sent, "Jan Peeters")
	assert.Contains(t, sent, "[PERSON_1]")

	// Nothing is released until the whole response is restorable: exactly one
	// text chunk, already deanonymized.
	chunks := collectStream(t, ch)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Jan Peeters kan de opzegging betwisten.", chunks[0].Text)
	assert.True(t, chunks[1].Done)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].WasAnonymized)
	assert.NotEmpty(t, entries[0].ResponseHash)
}

func TestStreamRequiresStreamingSupport(t *testing.T) {
	inhouse := &stubAdapter{}
	src := &fakeSource{
		configs:  []provider.Config{{Name: "inhouse", TrustTier: provider.TrustDomestic, DefaultModel: "m"}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	g, _ := newTestGateway(t, src, nil)

	_, err := g.Stream(context.Background(), Request{
		Messages:    userMessage("vraag"),
		Sensitivity: tierPtr(classify.TierPublic),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support streaming")
	assert.Zero(t, inhouse.callCount())
}

func TestStreamUpstreamErrorSurfaces(t *testing.T) {
	inhouse := &stubAdapter{streamFn: stubStream(
		provider.StreamChunk{Text: "deel één"},
		provider.StreamChunk{Error: errors.New("connection reset"), Done: true},
	)}
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "inhouse", TrustTier: provider.TrustDomestic,
			DefaultModel: "m", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	g, recorder := newTestGateway(t, src, nil)

	ch, err := g.Stream(context.Background(), Request{
		Messages:    userMessage("vraag"),
		Sensitivity: tierPtr(classify.TierPublic),
	})
	require.NoError(t, err)

	chunks := collectStream(t, ch)
	last := chunks[len(chunks)-1]
	require.Error(t, last.Error)
	assert.True(t, last.Done)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ErrorText, "stream aborted")
}

func TestStreamCallerCancellationAborts(t *testing.T) {
	// The adapter delivers one chunk and then holds the stream open until the
	// call context dies, the way a real vendor stream behaves.
	inhouse := &stubAdapter{streamFn: func(ctx context.Context, _ provider.Request) (<-chan provider.StreamChunk, error) {
		out := make(chan provider.StreamChunk, 2)
		out <- provider.StreamChunk{Text: "deel één "}
		go func() {
			<-ctx.Done()
			out <- provider.StreamChunk{Error: ctx.Err(), Done: true}
			close(out)
		}()
		return out, nil
	}}
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "inhouse", TrustTier: provider.TrustDomestic,
			DefaultModel: "m", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	g, recorder := newTestGateway(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := g.Stream(ctx, Request{
		Messages:    userMessage("vraag"),
		Sensitivity: tierPtr(classify.TierPublic),
	})
	require.NoError(t, err)

	select {
	case chunk := <-ch:
		assert.Equal(t, "deel één ", chunk.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("first chunk did not arrive")
	}

	cancel()

	// The channel must terminate; whether the terminal error chunk still
	// lands depends on whether the consumer beat the cancellation.
	for _, chunk := range collectStream(t, ch) {
		assert.Empty(t, chunk.Text)
	}

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ErrorText, "stream aborted")
}

func TestStreamAbandonedConsumerDoesNotBlock(t *testing.T) {
	// More upstream chunks than the output buffer holds, and a consumer that
	// never reads: cancellation must still let the forwarder finish.
	var chunks []provider.StreamChunk
	for i := 0; i < 40; i++ {
		chunks = append(chunks, provider.StreamChunk{Text: "stuk "})
	}
	chunks = append(chunks, provider.StreamChunk{Done: true})

	inhouse := &stubAdapter{streamFn: stubStream(chunks...)}
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "inhouse", TrustTier: provider.TrustDomestic,
			DefaultModel: "m", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	g, recorder := newTestGateway(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := g.Stream(ctx, Request{
		Messages:    userMessage("vraag"),
		Sensitivity: tierPtr(classify.TierPublic),
	})
	require.NoError(t, err)

	// Let the forwarder fill the output buffer and stall on the next send.
	require.Eventually(t, func() bool { return len(ch) == 32 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	// The abort is recorded even though nobody is reading.
	require.Eventually(t, func() bool {
		for _, e := range recorder.Entries() {
			if strings.Contains(e.ErrorText, "stream aborted") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// Draining afterwards finds only the buffered text; the terminal chunk
	// was dropped rather than waited on, and the channel is closed.
	got := collectStream(t, ch)
	require.Len(t, got, 32)
	for _, chunk := range got {
		assert.NoError(t, chunk.Error)
		assert.False(t, chunk.Done)
	}
}

func TestStreamNoAllowedProvider(t *testing.T) {
	src := &fakeSource{
		configs: []provider.Config{{
			Name: "abroad", TrustTier: provider.TrustConditional,
			DefaultModel: "gpt-4o", SupportsStreaming: true,
		}},
		adapters: map[string]*stubAdapter{},
	}
	g, _ := newTestGateway(t, src, nil)

	_, err := g.Stream(context.Background(), Request{
		Messages:    userMessage("vertrouwelijke vraag"),
		Sensitivity: tierPtr(classify.TierCritical),
	})
	require.Error(t, err)

	var noProvider *NoAllowedProviderError
	assert.ErrorAs(t, err, &noProvider)
}
