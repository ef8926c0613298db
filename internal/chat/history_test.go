package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func numbered(i int) Message {
	return Message{ID: fmt.Sprintf("%d", i), Text: fmt.Sprintf("message %d", i)}
}

func TestHistory_Recent_Returns_Chronological_Tail(t *testing.T) {
	req := require.New(t)
	history := NewHistory(10)
	for i := 1; i <= 5; i++ {
		history.Append(numbered(i))
	}

	req.Equal([]Message{numbered(3), numbered(4), numbered(5)}, history.Recent(3))
	req.Len(history.Recent(50), 5)
	req.Equal(numbered(1), history.Recent(50)[0])
}

func TestHistory_Evicts_Oldest_Past_Capacity(t *testing.T) {
	req := require.New(t)
	const capacity, extra = 1000, 37
	history := NewHistory(capacity)

	for i := 1; i <= capacity+extra; i++ {
		history.Append(numbered(i))
		req.LessOrEqual(history.Len(), capacity)
	}

	recent := history.Recent(capacity)
	req.Len(recent, capacity)
	for i, m := range recent {
		req.Equal(numbered(extra+1+i), m)
	}
}

func TestHistory_Recent_On_Empty_History(t *testing.T) {
	req := require.New(t)
	history := NewHistory(3)

	recent := history.Recent(20)
	req.NotNil(recent)
	req.Empty(recent)
	req.Empty(history.Recent(-1))
}

func TestHistory_Default_Capacity(t *testing.T) {
	require.Equal(t, DefaultHistoryCapacity, NewHistory(0).Cap())
}

func TestSequence_Is_Strictly_Increasing(t *testing.T) {
	req := require.New(t)
	var seq sequence
	prev := seq.next()
	for i := 0; i < 1000; i++ {
		id := seq.next()
		req.Less(prev, id)
		prev = id
	}
}
