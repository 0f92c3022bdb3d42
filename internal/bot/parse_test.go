package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/status"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		args    string
		want    request
		wantErr bool
	}{
		{
			name: "bare control command",
			cmd:  "shutdown",
			want: request{typ: command.TypeShutdown},
		},
		{
			name: "control command with machine",
			cmd:  "screenshot",
			args: "@desk",
			want: request{typ: command.TypeScreenshot, target: "desk"},
		},
		{
			name: "launch with program only",
			cmd:  "launch",
			args: "notepad",
			want: request{typ: command.TypeLaunchProgram, params: map[string]string{"program": "notepad"}},
		},
		{
			name: "launch with machine and args",
			cmd:  "launch",
			args: `@desk mpv --fullscreen "my file.mkv"`,
			want: request{
				typ:    command.TypeLaunchProgram,
				target: "desk",
				params: map[string]string{"program": "mpv", "args": "--fullscreen my file.mkv"},
			},
		},
		{
			name: "media key",
			cmd:  "playpause",
			want: request{typ: command.TypeMediaPlayPause},
		},
		{
			name:    "launch without program",
			cmd:     "launch",
			args:    "@desk",
			wantErr: true,
		},
		{
			name:    "stray arguments rejected",
			cmd:     "shutdown",
			args:    "now",
			wantErr: true,
		},
		{
			name:    "unterminated quote",
			cmd:     "launch",
			args:    `notepad "broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequest(tt.cmd, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(request{})); diff != "" {
				t.Errorf("parseRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRequestUnknown(t *testing.T) {
	_, err := parseRequest("dance", "")
	require.ErrorIs(t, err, errUnknownCommand)
}

func TestRenderStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	avail := []status.Availability{
		{
			Machine: status.Machine{MachineID: "m1", Hostname: "desk", LastSeen: now, CPUPercent: 12, MemPercent: 55},
			Band:    status.BandOnline,
		},
		{
			Machine: status.Machine{MachineID: "m2", Hostname: "attic", LastSeen: now.Add(-2 * time.Minute)},
			Band:    status.BandRecent,
		},
	}

	text := renderStatus(avail)
	require.Contains(t, text, "m1 (desk): online")
	require.Contains(t, text, "m2 (attic): recently seen")
	require.Equal(t, 2, strings.Count(text, "\n"))
}

func TestRenderStatusEmpty(t *testing.T) {
	require.Contains(t, renderStatus(nil), "No machines")
}
