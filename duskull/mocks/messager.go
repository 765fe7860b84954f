package mocks

import (
	"fmt"
	"ichor/duskull/defs"
)

// Messager records every message it is asked to send.
type Messager struct {
	Messages []defs.MessageData
	Err      error
}

func (m *Messager) SendMessage(msgData defs.MessageData) (uint64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.Messages = append(m.Messages, msgData)
	return uint64(len(m.Messages)), nil
}

func (m *Messager) LastMessage() (*defs.MessageData, error) {
	if len(m.Messages) == 0 {
		return nil, fmt.Errorf("no message found")
	}
	return &m.Messages[len(m.Messages)-1], nil
}
