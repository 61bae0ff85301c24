// internal/engine/result.go
package engine

import "github.com/xkilldash9x/igpilot/internal/site"

// Result is the normalized response of one action run. The embedded
// payloads are set only by the action that produces them and flatten into
// the top-level JSON object.
type Result struct {
	Action     string `json:"action"`
	OK         bool   `json:"ok"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Error      string `json:"error,omitempty"`
	NeedLogin  bool   `json:"needLogin,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`

	*LoginStatus
	*Collection
	*Delivery
}

// LoginStatus is the payload of loginCheck.
type LoginStatus struct {
	IsLoggedIn bool `json:"isLoggedIn"`
	APIStatus  int  `json:"apiStatus"`
}

// Collection is the payload of the harvesting actions.
type Collection struct {
	Links      []site.Item `json:"links"`
	Count      int         `json:"count"`
	HadModal   bool        `json:"hadModal"`
	ReachedEnd bool        `json:"reachedEnd"`
	StopReason string      `json:"stopReason"`
	// FoundTarget is set when the request named a targetUser.
	FoundTarget *bool `json:"foundTarget,omitempty"`
}

// Delivery is the payload of sendMessage.
type Delivery struct {
	Sent      bool   `json:"sent"`
	Confirmed bool   `json:"confirmed"`
	Target    string `json:"target"`
}

func failed(action string, err error) *Result {
	return &Result{Action: action, Error: err.Error()}
}
