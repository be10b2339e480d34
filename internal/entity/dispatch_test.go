package entity

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestManager_Dispatch(t *testing.T) {
	tests := map[string]struct {
		kind    string
		command string
		args    []string
		evict   bool
		exp     string
		expErr  error
	}{
		"known command": {
			kind:    "char",
			command: "level",
			exp:     "level 0",
		},
		"case insensitive with args": {
			kind:    "char",
			command: "LEVEL",
			args:    []string{"7"},
			exp:     "level 7",
		},
		"unknown command": {
			kind:    "char",
			command: "dance",
			expErr:  ErrUnknownCommand,
		},
		"not a commander": {
			kind:    "room",
			command: "level",
			expErr:  ErrUnknownCommand,
		},
		"invalid handle": {
			kind:    "char",
			command: "level",
			evict:   true,
			expErr:  ErrInvalidHandle,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			h := env.create(t, tt.kind)
			if tt.evict {
				env.mgr.Evict(h.ID())
			}

			got, err := env.mgr.Dispatch(t.Context(), h, tt.command, tt.args)
			if tt.expErr != nil {
				if !errors.Is(err, tt.expErr) {
					t.Errorf("error = %v, expected %v", err, tt.expErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "output", got, tt.exp)
		})
	}
}
