// internal/engine/action.go
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/igpilot/internal/composer"
)

var (
	// ErrUnrecognizedAction is returned for an action name outside the known set.
	ErrUnrecognizedAction = errors.New("unrecognized action")
	// ErrValidation marks a request missing a parameter its action requires.
	ErrValidation = errors.New("invalid request")
)

// Action names one of the behaviors the engine can run.
type Action string

const (
	ActionLoginCheck               Action = "loginCheck"
	ActionOpenSettings             Action = "openSettings"
	ActionFollowersLinks           Action = "followersLinks"
	ActionNotificationsSubscribers Action = "notificationsSubscribersLinks"
	ActionSendMessage              Action = "sendMessage"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionLoginCheck,
	ActionOpenSettings,
	ActionFollowersLinks,
	ActionNotificationsSubscribers,
	ActionSendMessage,
}

// ParseAction maps a request's action name to an Action. An empty name
// means ActionLoginCheck.
func ParseAction(name string) (Action, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ActionLoginCheck, nil
	}
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnrecognizedAction, name)
}

// Request carries the parameters of one action run.
type Request struct {
	Action         string `json:"action"`
	Username       string `json:"username,omitempty"`
	TargetUser     string `json:"targetUser,omitempty"`
	NeedScreenshot bool   `json:"needScreenshot,omitempty"`
	Max            int    `json:"max,omitempty"`
	TimeoutMs      int64  `json:"timeoutMs,omitempty"`
	Message        string `json:"message,omitempty"`
	ProfileURL     string `json:"profileUrl,omitempty"`
	ThreadID       string `json:"threadId,omitempty"`
	DirectURL      string `json:"directUrl,omitempty"`
}

// Target returns the message recipient addressed by the request.
func (r Request) Target() composer.Target {
	return composer.Target{
		Username:   r.Username,
		ProfileURL: r.ProfileURL,
		ThreadID:   r.ThreadID,
		DirectURL:  r.DirectURL,
	}
}

// Validate checks the parameters action requires. It never touches the browser.
func (r Request) Validate(action Action) error {
	switch action {
	case ActionFollowersLinks:
		if strings.TrimSpace(r.Username) == "" {
			return fmt.Errorf("%w: username required", ErrValidation)
		}
	case ActionSendMessage:
		if r.Message == "" {
			return fmt.Errorf("%w: message required", ErrValidation)
		}
		if r.Target().Empty() {
			return fmt.Errorf("%w: one of username, profileUrl, threadId or directUrl required", ErrValidation)
		}
	}
	return nil
}
