package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(Internal, "op", "", nil))
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := Wrap(Timeout, "transfer", "/data/a.bin", stderrors.New("exceeded 1s"))
	wrapped := fmt.Errorf("worker: %w", base)

	assert.Equal(t, Timeout, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, Timeout))
	assert.False(t, IsKind(nil, Timeout))
	assert.Equal(t, Internal, KindOf(stderrors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{New(InvalidConfig, "args", "missing destination"), "Invalid configuration: missing destination"},
		{Wrap(NotFound, "lookup", "rsync", stderrors.New("not found")), "Path not found: rsync"},
		{Wrap(TransferFailed, "transfer", "/a", stderrors.New("exit status 23")), "Transfer failed: /a: exit status 23"},
		{New(TransferFailed, "transfer", "1 of 2 files failed"), "Transfer failed: 1 of 2 files failed"},
		{Wrap(Timeout, "transfer", "/a", stderrors.New("exceeded")), "Transfer timed out: /a"},
		{stderrors.New("plain"), "plain"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserMessage(tc.err))
	}
}
