// Package command defines the unit of work exchanged with remote machines
// through the shared mailbox document.
package command

import (
	"fmt"
	"time"
)

// Type identifies what the remote agent should do. The set is open-ended:
// agents ignore types they do not know, so new types need no protocol change.
type Type string

const (
	TypeShutdown       Type = "shutdown"
	TypeRestart        Type = "restart"
	TypeSleep          Type = "sleep"
	TypeHibernate      Type = "hibernate"
	TypeLock           Type = "lock"
	TypeScreenshot     Type = "screenshot"
	TypeLaunchProgram  Type = "launch_program"
	TypeVolumeUp       Type = "volume_up"
	TypeVolumeDown     Type = "volume_down"
	TypeVolumeMute     Type = "volume_mute"
	TypeMediaPlayPause Type = "media_play_pause"
	TypeMediaStop      Type = "media_stop"
	TypeMediaNext      Type = "media_next"
	TypeMediaPrevious  Type = "media_previous"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Command is one record in the mailbox document. The bot writes it as pending;
// the remote agent flips it to a terminal status and fills the result.
type Command struct {
	ID         int64             `json:"id"`
	Type       Type              `json:"type"`
	Target     string            `json:"target,omitempty"`
	Issuer     string            `json:"issuer"`
	Params     map[string]string `json:"params,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Status     Status            `json:"status"`
	ExecutedAt *time.Time        `json:"executed_at,omitempty"`
	Result     string            `json:"result,omitempty"`
	DedupHash  string            `json:"dedup_hash"`
	RetryCount int               `json:"retry_count,omitempty"`
}

// New builds a pending command. The ID is assigned by the mailbox on append.
func New(issuer string, t Type, target string, params map[string]string, now time.Time) Command {
	return Command{
		Type:      t,
		Target:    target,
		Issuer:    issuer,
		Params:    params,
		CreatedAt: now,
		Status:    StatusPending,
		DedupHash: DedupHash(issuer, t, params),
	}
}

// Transition moves the command to a terminal status. Status moves forward only:
// a terminal record never returns to pending, and executed/failed never swap.
func (c *Command) Transition(status Status, result string, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("command %d is already %s, cannot transition to %s", c.ID, c.Status, status)
	}
	if status != StatusExecuted && status != StatusFailed {
		return fmt.Errorf("invalid target status %q for command %d", status, c.ID)
	}

	c.Status = status
	c.Result = result
	c.ExecutedAt = &now
	if status == StatusFailed {
		c.RetryCount++
	}
	return nil
}
