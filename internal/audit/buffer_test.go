package audit

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type BufferSuite struct {
	suite.Suite
}

func TestBufferSuite(t *testing.T) {
	suite.Run(t, new(BufferSuite))
}

func (s *BufferSuite) TestEnqueueDequeue() {
	buf := newRingBuffer(4)

	for i := 0; i < 3; i++ {
		dropped := buf.enqueue(SecurityEvent{UserID: "u", Type: EventInjectionAttempt})
		s.False(dropped)
	}
	s.Equal(3, buf.len())

	batch := buf.dequeueBatch(10)
	s.Len(batch, 3)
	s.Equal(0, buf.len())
}

func (s *BufferSuite) TestOverflowDropsOldest() {
	buf := newRingBuffer(3)

	buf.enqueue(SecurityEvent{UserID: "first"})
	buf.enqueue(SecurityEvent{UserID: "second"})
	buf.enqueue(SecurityEvent{UserID: "third"})
	dropped := buf.enqueue(SecurityEvent{UserID: "fourth"})

	s.True(dropped)
	s.Equal(3, buf.len())
	s.Equal(int64(1), buf.droppedTotal())

	batch := buf.dequeueBatch(10)
	s.Require().Len(batch, 3)
	s.Equal("second", batch[0].UserID, "oldest entry made room for the newest")
	s.Equal("fourth", batch[2].UserID)
}

func (s *BufferSuite) TestDequeueBatchHonorsLimit() {
	buf := newRingBuffer(8)
	for i := 0; i < 5; i++ {
		buf.enqueue(SecurityEvent{UserID: "u"})
	}

	s.Len(buf.dequeueBatch(2), 2)
	s.Len(buf.dequeueBatch(2), 2)
	s.Len(buf.dequeueBatch(2), 1)
	s.Nil(buf.dequeueBatch(2))
}

func (s *BufferSuite) TestWrapAround() {
	buf := newRingBuffer(2)

	for round := 0; round < 5; round++ {
		buf.enqueue(SecurityEvent{UserID: "a"})
		buf.enqueue(SecurityEvent{UserID: "b"})
		batch := buf.dequeueBatch(2)
		s.Require().Len(batch, 2)
		s.Equal("a", batch[0].UserID)
		s.Equal("b", batch[1].UserID)
	}
}
