package config

import "time"

const (
	// Issuance guards.
	CooldownWindow       = 30 * time.Second // Minimum delay between accepted issuances of the same logical command.
	CooldownSweepHorizon = 1 * time.Hour    // Cooldown entries idle longer than this are evicted from memory.

	// Availability bands derived from the machine status document.
	OnlineThreshold    = 60 * time.Second  // Seen within this window means 'online'.
	AvailabilityWindow = 300 * time.Second // Seen within this window means 'available' (more means offline).

	// Mailbox retention.
	RetentionHorizon   = 7 * 24 * time.Hour // Terminal command records older than this are removed.
	RetentionInterval  = 1 * time.Hour
	MailboxMaxCommands = 100 // The mailbox document is capped to this many records on every write.
	MailboxSaveRetries = 5   // Maximum CAS attempts before a mailbox write gives up.

	// Event log.
	EventLogMaxEntries     = 10000 // Persisted log document cap.
	EventLogFlushThreshold = 100   // Buffered entries before a flush is forced.
	EventLogFlushInterval  = 1 * time.Minute

	// Background loops.
	ScreenshotPollInterval = 15 * time.Second
	DatabaseGCInterval     = 5 * time.Minute
	DBGCThreshold          = 0.7 // Threshold for badger value log garbage collection.
	IntervalJitter         = 0.1 // Fractional jitter applied to every loop interval.

	// Telegram long polling.
	UpdateTimeout = 30 // Seconds, passed to getUpdates.

	// Persisted document names.
	MailboxDocument  = "commands.json"
	StatusDocument   = "pc_status.json"
	EventLogDocument = "logs.json"
	ScreenshotPrefix = "screenshots/"

	// File and directory paths.
	DefaultConfigDir   = "/etc/telepult"
	DefaultDatabaseDir = "/var/lib/telepult/database"
)
