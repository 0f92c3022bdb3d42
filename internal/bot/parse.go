package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/status"
)

var errUnknownCommand = errors.New("unknown command")

// commandTypes maps chat commands onto mailbox command types. These take an
// optional machine argument and nothing else.
var commandTypes = map[string]command.Type{
	"shutdown":   command.TypeShutdown,
	"restart":    command.TypeRestart,
	"sleep":      command.TypeSleep,
	"hibernate":  command.TypeHibernate,
	"lock":       command.TypeLock,
	"screenshot": command.TypeScreenshot,
	"volup":      command.TypeVolumeUp,
	"voldown":    command.TypeVolumeDown,
	"mute":       command.TypeVolumeMute,
	"playpause":  command.TypeMediaPlayPause,
	"stop":       command.TypeMediaStop,
	"next":       command.TypeMediaNext,
	"prev":       command.TypeMediaPrevious,
}

type request struct {
	typ    command.Type
	target string
	params map[string]string
}

// parseRequest turns "/launch @desk notepad /A" style input into a request.
// A "@machine" token anywhere in the arguments selects the target explicitly.
func parseRequest(name, args string) (request, error) {
	fields, err := shlex.Split(args)
	if err != nil {
		return request{}, fmt.Errorf("could not parse arguments: %w", err)
	}

	req := request{}
	rest := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "@") && req.target == "" {
			req.target = strings.TrimPrefix(f, "@")
			continue
		}
		rest = append(rest, f)
	}

	if name == "launch" {
		if len(rest) == 0 {
			return request{}, errors.New("usage: /launch [@machine] <program> [args...]")
		}
		req.typ = command.TypeLaunchProgram
		req.params = map[string]string{"program": rest[0]}
		if len(rest) > 1 {
			req.params["args"] = strings.Join(rest[1:], " ")
		}
		return req, nil
	}

	typ, ok := commandTypes[name]
	if !ok {
		return request{}, errUnknownCommand
	}
	if len(rest) > 0 {
		return request{}, fmt.Errorf("/%s takes no arguments besides @machine", name)
	}
	req.typ = typ
	return req, nil
}

// renderStatus formats the availability answer, one line per machine.
// Offline machines are not listed at all.
func renderStatus(avail []status.Availability) string {
	if len(avail) == 0 {
		return "No machines have reported recently."
	}

	var sb strings.Builder
	for _, a := range avail {
		m := a.Machine
		label := "online"
		if a.Band == status.BandRecent {
			label = "recently seen"
		}
		fmt.Fprintf(&sb, "%s (%s): %s, last seen %s, cpu %.0f%%, mem %.0f%%\n",
			m.MachineID, m.Hostname, label, m.LastSeen.Format(time.DateTime), m.CPUPercent, m.MemPercent)
	}
	return sb.String()
}
