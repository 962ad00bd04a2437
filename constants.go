package resocket

import "time"

const (
	// DefaultReconnectInterval is the fixed wait between connection attempts
	DefaultReconnectInterval = 1000 * time.Millisecond

	// DefaultConnectTimeout is how long an attempt may take before it is declared failed
	DefaultConnectTimeout = 2000 * time.Millisecond

	// ReconnectDisabled can be used as Config.ReconnectInterval to turn off retries
	ReconnectDisabled time.Duration = -1

	// ReconnectImmediately can be used as Config.ReconnectInterval to retry on the next
	// turn of the event loop. Zero selects DefaultReconnectInterval instead.
	ReconnectImmediately time.Duration = 1
)

const (
	// sendBufferSize is how many outbound frames may be queued on a single connection
	sendBufferSize = 100

	// writeWait bounds every write, including the close frame sent when a handle is discarded
	writeWait = time.Second

	// closeGracePeriod is how long a discarded handle waits for the peer to answer its close frame
	closeGracePeriod = 250 * time.Millisecond
)
