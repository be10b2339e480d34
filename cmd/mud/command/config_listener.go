package command

import (
	"fmt"
	"strings"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/listener"
	"github.com/pixil98/go-service"
)

type ListenerType int

const (
	ListenerTypeTelnet ListenerType = iota
	ListenerTypeWebsocket
)

func (lt *ListenerType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "telnet":
		*lt = ListenerTypeTelnet
	case "websocket":
		*lt = ListenerTypeWebsocket
	default:
		return fmt.Errorf("unknown listener type: %s", text)
	}
	return nil
}

type ListenerConfig struct {
	Protocol ListenerType `json:"protocol"`
	Port     uint16       `json:"port"`
	Path     string       `json:"path,omitempty"`
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}
	if cl.Path != "" {
		if cl.Protocol != ListenerTypeWebsocket {
			el.Add(fmt.Errorf("path is only used by websocket listeners"))
		} else if !strings.HasPrefix(cl.Path, "/") {
			el.Add(fmt.Errorf("path %q must start with /", cl.Path))
		}
	}

	return el.Err()
}

func (cl *ListenerConfig) BuildListener(cm *listener.ConnectionManager) (service.Worker, error) {
	switch cl.Protocol {
	case ListenerTypeTelnet:
		return listener.NewTelnetListener(cl.Port, cm), nil
	case ListenerTypeWebsocket:
		return listener.NewWebsocketListener(cl.Port, cl.Path, cm), nil
	default:
		return nil, fmt.Errorf("unknown listener type: %v", cl.Protocol)
	}
}
