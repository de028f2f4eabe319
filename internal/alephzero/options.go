package alephzero

// Init selects where a reader starts in the topic log.
type Init int

const (
	// InitOldest starts from the oldest retained frame.
	InitOldest Init = iota
	// InitMostRecent delivers the latest existing frame, then new ones.
	InitMostRecent
	// InitAwaitNew delivers only frames written after the reader attaches.
	InitAwaitNew
)

// Iter selects how a reader advances through the topic log.
type Iter int

const (
	// IterNext delivers every frame in sequence order.
	IterNext Iter = iota
	// IterNewest jumps to the latest available frame, skipping any backlog.
	IterNewest
)

// LogLevel is the severity attached to log packets via the a0_log_level
// header. Listeners filter with a level floor.
type LogLevel int

const (
	LevelDbg LogLevel = iota
	LevelInfo
	LevelWarn
	LevelErr
	LevelCrit
)

// LogLevels maps the wire names to levels.
func LogLevels() map[string]LogLevel {
	return map[string]LogLevel{
		"DBG":  LevelDbg,
		"INFO": LevelInfo,
		"WARN": LevelWarn,
		"ERR":  LevelErr,
		"CRIT": LevelCrit,
	}
}

// packetLevel reads the severity of a log packet. Packets without a
// recognizable level header always pass the listener's floor.
func packetLevel(p Packet) LogLevel {
	v, ok := p.Header(HeaderLogLevel)
	if !ok {
		return LevelCrit
	}
	lvl, ok := LogLevels()[v]
	if !ok {
		return LevelCrit
	}
	return lvl
}
