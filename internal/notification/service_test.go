package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSender records delivered messages and fails for one template key.
type captureSender struct {
	mu       sync.Mutex
	sent     []Message
	failKey  string
	failWith error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failKey != "" && msg.TemplateKey == c.failKey {
		return c.failWith
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureSender) delivered() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchDeliversAsync(t *testing.T) {
	sender := &captureSender{}
	svc := New(sender, WithLogger(discardLogger()))
	svc.Start(context.Background())

	msg := Message{
		RecipientID:   uuid.New(),
		ApplicationID: uuid.New(),
		Locale:        "es",
		TemplateKey:   TemplateSubmitted,
		Summary:       Summary(TemplateSubmitted, "es"),
	}
	require.True(t, svc.Dispatch(context.Background(), msg))
	svc.Stop()

	delivered := sender.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, msg.RecipientID, delivered[0].RecipientID)
	assert.Equal(t, TemplateSubmitted, delivered[0].TemplateKey)
}

func TestDispatchDropsWhenQueueFull(t *testing.T) {
	sender := &captureSender{}
	// Workers are never started, so the single buffer slot is all there is.
	svc := New(sender, WithBuffer(1), WithLogger(discardLogger()))

	assert.True(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateSubmitted}))
	assert.False(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateSubmitted}))
}

func TestStopDrainsQueue(t *testing.T) {
	sender := &captureSender{}
	svc := New(sender, WithWorkers(1), WithLogger(discardLogger()))
	svc.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.True(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateApproved}))
	}
	svc.Stop()

	assert.Len(t, sender.delivered(), 10)
}

func TestDispatchAfterStop(t *testing.T) {
	svc := New(&captureSender{}, WithLogger(discardLogger()))
	svc.Start(context.Background())
	svc.Stop()

	assert.False(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateRejected}))
}

func TestDeliveryFailureDoesNotStopWorkers(t *testing.T) {
	sender := &captureSender{failKey: TemplateSubmitted, failWith: errors.New("smtp down")}
	svc := New(sender, WithWorkers(1), WithLogger(discardLogger()))
	svc.Start(context.Background())

	require.True(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateSubmitted}))
	require.True(t, svc.Dispatch(context.Background(), Message{TemplateKey: TemplateApproved}))
	svc.Stop()

	delivered := sender.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, TemplateApproved, delivered[0].TemplateKey)
}

func TestLocaleForJurisdiction(t *testing.T) {
	assert.Equal(t, "es", Locale("Spain"))
	assert.Equal(t, "es", Locale("Mexico"))
	assert.Equal(t, "es", Locale("Colombia"))
	assert.Equal(t, "pt", Locale("Portugal"))
	assert.Equal(t, "pt", Locale("Brazil"))
	assert.Equal(t, "it", Locale("Italy"))
	assert.Equal(t, "es", Locale("Atlantis"))
}

func TestSummaryFallsBackToSpanish(t *testing.T) {
	assert.NotEmpty(t, Summary(TemplateApproved, "pt"))
	assert.Equal(t, Summary(TemplateApproved, "es"), Summary(TemplateApproved, "fr"))
	assert.Empty(t, Summary("unknown_template", "es"))
}
