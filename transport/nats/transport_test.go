package nats

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/copilot"
)

func errorMsg(code string, description string) *nats.Msg {
	msg := nats.NewMsg("copilot.ask")
	msg.Header.Set(micro.ErrorCodeHeader, code)
	msg.Header.Set(micro.ErrorHeader, description)
	return msg
}

func TestErrorCode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("400", ErrorCode(copilot.ErrEmptyQuestion))
	assert.Equal("404", ErrorCode(copilot.ErrDocumentNotFound))
	assert.Equal("404", ErrorCode(fmt.Errorf("lookup: %w", copilot.ErrQueryNotFound)))
	assert.Equal("502", ErrorCode(&copilot.LLMError{Err: errors.New("boom")}))
	assert.Equal("500", ErrorCode(errors.New("disk full")))
}

func TestErrorWithoutHeader(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Error(nats.NewMsg("copilot.ask")))
	assert.Error(Error(nil))
}

func TestErrorRestoresSentinels(t *testing.T) {
	assert := assert.New(t)

	err := Error(errorMsg("400", copilot.ErrEmptyQuestion.Error()))
	assert.ErrorIs(err, copilot.ErrInvalidArgument)
	assert.Equal(copilot.ErrEmptyQuestion.Error(), err.Error())

	err = Error(errorMsg("404", copilot.ErrQueryNotFound.Error()))
	assert.ErrorIs(err, copilot.ErrQueryNotFound)

	err = Error(errorMsg("404", copilot.ErrDocumentNotFound.Error()))
	assert.ErrorIs(err, copilot.ErrDocumentNotFound)

	err = Error(errorMsg("502", "llm: rate limited"))

	var llmErr *copilot.LLMError
	if assert.ErrorAs(err, &llmErr) {
		assert.Equal("rate limited", llmErr.Err.Error())
	}

	err = Error(errorMsg("500", "disk full"))

	var remote *RemoteError
	if assert.ErrorAs(err, &remote) {
		assert.Equal("500", remote.Code)
		assert.Nil(remote.Unwrap())
	}
}
