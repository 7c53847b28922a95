package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New[int]()

	first, unsubFirst := b.Subscribe(2)
	second, unsubSecond := b.Subscribe(2)
	defer unsubSecond()

	b.Publish(1)
	assert.Equal(t, 1, <-first)
	assert.Equal(t, 1, <-second)

	unsubFirst()
	unsubFirst()
	_, ok := <-first
	assert.False(t, ok, "unsubscribed channel must be closed")

	b.Publish(2)
	assert.Equal(t, 2, <-second)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New[string]()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish("a")
	b.Publish("b") // буфер полон, значение теряется

	assert.Equal(t, "a", <-ch)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBus_Close(t *testing.T) {
	b := New[int]()
	ch, unsub := b.Subscribe(1)

	b.Close()
	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	// отписка после закрытия безопасна
	unsub()
	b.Publish(1)

	late, _ := b.Subscribe(1)
	_, ok = <-late
	require.False(t, ok)
}
