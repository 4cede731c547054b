package service

import (
	"github.com/oscbridge-protocol/oscbridge-go/pkg/osc"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/transport"
)

const (
	avatarParameterPrefix = "/avatar/parameters/"
	chatboxInputAddress   = "/chatbox/input"
	chatboxTypingAddress  = "/chatbox/typing"
)

func (m *Manager) currentSender() (*transport.Sender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sender == nil {
		return nil, ErrNotRunning
	}
	return m.sender, nil
}

func (m *Manager) send(address string, args ...any) error {
	sender, err := m.currentSender()
	if err != nil {
		return err
	}
	return sender.Send(osc.NewMessage(address, args...))
}

// SendAvatarParameterBool sets a boolean avatar parameter on the peer.
func (m *Manager) SendAvatarParameterBool(name string, value bool) error {
	return m.send(avatarParameterPrefix+name, value)
}

// SendAvatarParameterInt sets an integer avatar parameter on the peer.
func (m *Manager) SendAvatarParameterInt(name string, value int32) error {
	return m.send(avatarParameterPrefix+name, value)
}

// SendAvatarParameterFloat sets a float avatar parameter on the peer.
func (m *Manager) SendAvatarParameterFloat(name string, value float32) error {
	return m.send(avatarParameterPrefix+name, value)
}

// SendChatbox writes text into the peer's chat box. sendImmediately skips
// the peer-side keyboard, notify plays the notification sound.
func (m *Manager) SendChatbox(text string, sendImmediately, notify bool) error {
	return m.send(chatboxInputAddress, text, sendImmediately, notify)
}

// SetChatboxTyping toggles the peer's typing indicator.
func (m *Manager) SetChatboxTyping(active bool) error {
	return m.send(chatboxTypingAddress, active)
}
