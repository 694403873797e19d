package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readability
var (
	ServerHost        string // hostname of the timing server
	ServerPort        int    // port of the timing server
	ServerPath        string // websocket path on the timing server
	UseTLS            bool   // connect via wss instead of ws
	Lane              int    // lane number of this device
	Role              string // "lane" (produces splits) or "starter" (produces start commands)
	ReconnectInterval string // interval between reconnect attempts
	DebounceInterval  string // guard interval between accepted button presses
	WaitForServer     string // duration to wait for the timing server on startup (0s = don't wait)
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules
)
